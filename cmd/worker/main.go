package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kennteohstorehub/BeepChatBot/internal/bootstrap"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/handlers/health"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/routers"
	"github.com/kennteohstorehub/BeepChatBot/internal/worker"
	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
	"github.com/kennteohstorehub/BeepChatBot/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/worker.yaml", "配置文件路径")
	envPath    = flag.String("env", ".env", ".env 文件路径（不存在时忽略）")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  ORDERBOT Worker Starting...")
	log.Println("========================================")

	// 1. 加载配置
	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s\n", cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// 3. 构造共享依赖（队列、缓存、熔断器、平台客户端）
	ctx := context.Background()
	app, cleanup, err := bootstrap.InitializeApp(ctx, cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	// 4. 创建 Manager
	mgr, err := worker.NewManagerInstance(cfg, app.Queue, app.Deps(), app.Metrics, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	go func() {
		if err := mgr.Start(); err != nil {
			log.Fatalf("Manager start failed: %v", err)
		}
	}()

	// 5. 运维端口
	var opsServer *http.Server
	if cfg.Server.MetricsPort != "" {
		opsServer = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.MetricsPort),
			Handler:           routers.SetupMetricsRoutes(health.NewHandler(cfg.App.Name, app), app.Metrics.Handler(), zapLogger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("Ops server listening on %s", opsServer.Addr)
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Ops server error: %v", err)
			}
		}()
	}

	log.Println("Worker started. Press Ctrl+C to shutdown.")

	// 6. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Println("========================================")
	log.Printf("  Received signal: %v\n", sig)
	log.Println("  Shutting down Worker...")
	log.Println("========================================")

	// 7. 先排空任务，再关闭运维端口和依赖
	mgr.Shutdown()
	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Ops server shutdown error: %v", err)
		}
	}

	fmt.Println("========================================")
	fmt.Println("  Worker exited gracefully")
	fmt.Println("========================================")
}
