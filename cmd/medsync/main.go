package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olayemidamola/medsync/internal/config"
	httpapi "github.com/olayemidamola/medsync/internal/http"
	"github.com/olayemidamola/medsync/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	logger, err := initLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	// 3. 创建服务
	trackerService, err := service.NewTrackerService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create tracker service",
			zap.Error(err),
		)
	}
	defer trackerService.Stop()

	// 4. 注册 HTTP 路由
	router := httpapi.NewRouter(logger)
	router.RegisterMedicationRoutes(httpapi.NewMedicationHandler(trackerService.Medications(), logger))
	router.RegisterCaregiverRoutes(httpapi.NewCaregiverHandler(trackerService.Medications(), logger))
	router.RegisterHistoryRoutes(httpapi.NewHistoryHandler(trackerService.History(), logger))
	router.RegisterAlertRoutes(httpapi.NewAlertsHandler(trackerService.Alerts(), logger))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 5. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 启动评估循环与 HTTP 服务
	if err := trackerService.Start(ctx); err != nil {
		logger.Fatal("Failed to start tracker service",
			zap.Error(err),
		)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", cfg.HTTP.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// 7. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case err := <-serverErrChan:
		logger.Error("HTTP server error",
			zap.Error(err),
		)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server",
			zap.Error(err),
		)
	}
	cancel()

	logger.Info("Tracker service stopped")
}

// initLogger 初始化日志
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Log.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}
