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

	"github.com/gin-gonic/gin"

	"github.com/kennteohstorehub/BeepChatBot/internal/bootstrap"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/handlers/health"
	"github.com/kennteohstorehub/BeepChatBot/internal/server/handlers/webhook"
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

	// 1. 加载配置
	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. 初始化应用
	ctx := context.Background()
	app, cleanup, err := bootstrap.InitializeApp(ctx, cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	if cfg.Server.WebhookSecret == "" {
		zapLogger.Warnf(ctx, "[APIServer] webhook secret not configured, signature verification disabled")
	}

	// 3. 内存队列只在本进程可见，此时在进程内启动 worker
	var mgr worker.Manager
	if !worker.IsDurable(app.Queue) {
		if len(cfg.Workers) == 0 {
			log.Fatalf("In-memory queue requires at least one worker in config")
		}
		mgr, err = worker.NewManagerInstance(cfg, app.Queue, app.Deps(), app.Metrics, zapLogger)
		if err != nil {
			log.Fatalf("Failed to create embedded manager: %v", err)
		}
		go func() {
			if err := mgr.Start(); err != nil {
				log.Fatalf("Embedded manager start failed: %v", err)
			}
		}()
		log.Println("Embedded worker started (in-memory queue)")
	}

	// 4. 创建 HTTP Server
	engine := routers.SetupRoutes(
		webhook.NewHandler(app.Queue, cfg.Lmstfy.Queue, cfg.Server.WebhookSecret, zapLogger),
		health.NewHandler(cfg.App.Name, app),
		app.Metrics.Handler(),
		zapLogger,
	)
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 5. 优雅停机
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
	case err := <-serverErrChan:
		log.Printf("HTTP server error: %v", err)
	}

	gracefulShutdown(server, mgr)
	log.Println("Application stopped")
}

// gracefulShutdown 先停止接收 webhook，再排空进程内任务
func gracefulShutdown(server *http.Server, mgr worker.Manager) {
	log.Println("Stopping HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	if mgr != nil {
		log.Println("Stopping embedded worker...")
		mgr.Shutdown()
	}
}
