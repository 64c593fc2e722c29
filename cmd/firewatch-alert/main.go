package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"firewatch/internal/config"
	"firewatch/internal/platform"
	"firewatch/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	logger, err := platform.NewLogger(cfg.Log.Level, cfg.Log.Format, "firewatch-alert")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	// 3. 创建告警引擎
	engine, err := service.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create alert engine",
			zap.Error(err),
		)
	}
	defer engine.Stop()

	// 4. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. 启动引擎（在 goroutine 中）
	engineErrChan := make(chan error, 1)
	go func() {
		if err := engine.Start(ctx); err != nil {
			engineErrChan <- err
		}
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-engineErrChan:
		logger.Fatal("Engine error",
			zap.Error(err),
		)
	}

	logger.Info("Alert engine stopped")
}
