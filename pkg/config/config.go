package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lmstfy    LmstfyConfig    `mapstructure:"lmstfy"`
	Workers   []WorkerConfig  `mapstructure:"workers"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Intercom  IntercomConfig  `mapstructure:"intercom"`
	Server    ServerConfig    `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// MySQLConfig MySQL 配置（审计记录，DSN 为空则不落库）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LmstfyConfig Lmstfy 配置（Host 为空时使用内存队列）
type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
	Queue     string `mapstructure:"queue"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name          string           `mapstructure:"name"`
	QueueName     string           `mapstructure:"queue_name"`
	EscalateQueue string           `mapstructure:"escalate_queue"` // 重试耗尽后的升级队列
	Subscriber    SubscriberConfig `mapstructure:"subscriber"`
	Processor     ProcessorConfig  `mapstructure:"processor"`
	Retry         RetryConfig      `mapstructure:"retry"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // Time-To-Run
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时
}

// RetryConfig 重试策略
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// PlatformsConfig 各配送平台配置
type PlatformsConfig struct {
	Lalamove  PlatformConfig `mapstructure:"lalamove"`
	Foodpanda PlatformConfig `mapstructure:"foodpanda"`
	Internal  PlatformConfig `mapstructure:"internal"`
}

// PlatformConfig 单个平台配置
type PlatformConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Market    string        `mapstructure:"market"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // 每秒请求数，0 表示不限流
	Burst     int           `mapstructure:"burst"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Window       time.Duration `mapstructure:"window"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// CacheConfig 状态缓存配置
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory | redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// ResolverConfig 解析器配置
type ResolverConfig struct {
	TotalTimeout time.Duration `mapstructure:"total_timeout"`
}

// IntercomConfig 会话前端配置
type IntercomConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	AccessToken   string        `mapstructure:"access_token"`
	AdminID       string        `mapstructure:"admin_id"`
	SupportTeamID string        `mapstructure:"support_team_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig Webhook 服务配置
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	MetricsPort   string `mapstructure:"metrics_port"` // worker 进程的健康检查与指标端口，为空不启动
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// legacyEnv 兼容原有的环境变量名
var legacyEnv = map[string]string{
	"platforms.lalamove.api_key":    "LALAMOVE_API_KEY",
	"platforms.lalamove.api_secret": "LALAMOVE_API_SECRET",
	"platforms.foodpanda.api_key":   "FOODPANDA_API_KEY",
	"platforms.foodpanda.base_url":  "FOODPANDA_API_URL",
	"platforms.internal.api_key":    "IST_API_KEY",
	"platforms.internal.base_url":   "IST_API_URL",
	"intercom.access_token":         "INTERCOM_ACCESS_TOKEN",
	"intercom.admin_id":             "INTERCOM_BOT_ADMIN_ID",
	"intercom.support_team_id":      "SUPPORT_TEAM_ID",
	"server.webhook_secret":         "WEBHOOK_SECRET",
	"server.port":                   "PORT",
	"redis.addr":                    "REDIS_ADDR",
	"mysql.dsn":                     "MYSQL_DSN",
	"cache.ttl":                     "CACHE_TTL",
	"app.log_level":                 "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orderbot")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lmstfy.host", "")
	v.SetDefault("lmstfy.port", 7777)
	v.SetDefault("lmstfy.namespace", "beep")
	v.SetDefault("lmstfy.token", "")
	v.SetDefault("lmstfy.queue", "order-status")

	v.SetDefault("platforms.lalamove.base_url", "https://rest.lalamove.com")
	v.SetDefault("platforms.lalamove.market", "MY")
	v.SetDefault("platforms.foodpanda.base_url", "https://api.foodpanda.my")
	v.SetDefault("platforms.internal.base_url", "")
	for _, p := range []string{"lalamove", "foodpanda", "internal"} {
		v.SetDefault("platforms."+p+".api_key", "")
		v.SetDefault("platforms."+p+".timeout", 5*time.Second)
		v.SetDefault("platforms."+p+".rate_limit", 10.0)
		v.SetDefault("platforms."+p+".burst", 5)
	}
	v.SetDefault("platforms.lalamove.api_secret", "")

	v.SetDefault("breaker.window", 60*time.Second)
	v.SetDefault("breaker.min_requests", 6)
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.cooldown", 30*time.Second)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 300*time.Second)

	v.SetDefault("resolver.total_timeout", 15*time.Second)

	v.SetDefault("intercom.base_url", "https://api.intercom.io")
	v.SetDefault("intercom.access_token", "")
	v.SetDefault("intercom.admin_id", "")
	v.SetDefault("intercom.support_team_id", "")
	v.SetDefault("intercom.timeout", 10*time.Second)

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.metrics_port", "9091")
	v.SetDefault("server.webhook_secret", "")
}

// LoadDotEnv 加载 .env 文件（文件不存在时忽略）
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s failed: %w", p, err)
		}
	}
	return nil
}

// Load 加载配置文件，configPath 为空时仅使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORDERBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		envKey := "ORDERBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, env); err != nil {
			return nil, fmt.Errorf("bind env %s failed: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyWorkerDefaults()

	return &cfg, nil
}

// applyWorkerDefaults 补齐 Worker 默认值（切片无法走 viper 默认值）
func (c *Config) applyWorkerDefaults() {
	for i := range c.Workers {
		w := &c.Workers[i]
		if w.QueueName == "" {
			w.QueueName = c.Lmstfy.Queue
		}
		if w.EscalateQueue == "" {
			w.EscalateQueue = w.QueueName
		}
		if w.Subscriber.Threads <= 0 {
			w.Subscriber.Threads = 1
		}
		if w.Subscriber.Timeout <= 0 {
			w.Subscriber.Timeout = 3 * time.Second
		}
		if w.Subscriber.TTR <= 0 {
			w.Subscriber.TTR = 30 * time.Second
		}
		if w.Subscriber.ErrorBackoff <= 0 {
			w.Subscriber.ErrorBackoff = time.Second
		}
		if w.Processor.Threads <= 0 {
			w.Processor.Threads = 4
		}
		if w.Processor.BufferSize <= 0 {
			w.Processor.BufferSize = w.Processor.Threads * 2
		}
		if w.Processor.Timeout <= 0 {
			w.Processor.Timeout = 20 * time.Second
		}
		if w.Retry.MaxAttempts <= 0 {
			w.Retry.MaxAttempts = 3
		}
		if w.Retry.BaseDelay <= 0 {
			w.Retry.BaseDelay = 2 * time.Second
		}
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio)
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker.cooldown must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("unknown cache.backend: %q", c.Cache.Backend)
	}
	if c.Resolver.TotalTimeout <= 0 {
		return fmt.Errorf("resolver.total_timeout must be positive")
	}
	for _, w := range c.Workers {
		if w.Name == "" {
			return fmt.Errorf("worker name is required")
		}
		if w.QueueName == "" {
			return fmt.Errorf("worker %s: queue_name is required", w.Name)
		}
	}
	return nil
}

// ValidateWorker 额外校验 worker 进程所需配置
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	return nil
}
