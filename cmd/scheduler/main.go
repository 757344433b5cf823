package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"FareWatch/config"
	"FareWatch/internal/queue"
	"FareWatch/internal/repository"
	"FareWatch/internal/schedule"
	"FareWatch/pkg/logger"
	"FareWatch/storage"
	"FareWatch/storage/database"
)

func main() {

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	if err := queue.DeclareQueues(); err != nil {
		logger.Logger.Fatal("Failed to declare queues", zap.Error(err))
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
	)

	go runRefreshLoop(ctx)

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runRefreshLoop 周期性扫描活跃用户并投递全量刷新消息。
// 扫描间隔与防重窗口都取 REFRESH_INTERVAL_MINUTES，窗口内同一用户只投递一次。
func runRefreshLoop(ctx context.Context) {
	s := schedule.NewRefreshScheduler(
		repository.NewTripRepository(database.DB()),
		logger.Logger,
	)

	interval := time.Duration(config.Cfg.RefreshIntervalMinutes) * time.Minute
	if config.Cfg.IsDevelopment() {
		interval = 1 * time.Minute
		logger.Logger.Info("Refresh loop running in development mode with 1m interval")
	}

	window := time.Duration(config.Cfg.RefreshIntervalMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if err := s.ScheduleRefreshes(runCtx, window); err != nil {
				logger.Logger.Error("Refresh scheduling run failed", zap.Error(err))
			}
			cancel()
		}
	}
}
