package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"FareWatch/config"
	"FareWatch/internal/cache"
	"FareWatch/internal/fetch"
	"FareWatch/internal/queue"
	"FareWatch/internal/repository"
	"FareWatch/internal/workflow"
	"FareWatch/pkg/logger"
	"FareWatch/pkg/metrics"
	"FareWatch/pkg/otel"
	"FareWatch/pkg/providers"
	"FareWatch/pkg/retry"
	"FareWatch/pkg/snowflake"
	"FareWatch/storage"
	"FareWatch/storage/database"
)

func main() {

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if config.Cfg.OTelEnabled {
		otelShutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:  config.Cfg.ServiceName + "-worker",
			Environment:  config.Cfg.Environment,
			OTLPEndpoint: config.Cfg.OTelEndpoint,
			SampleRatio:  config.Cfg.OTelSampler,
		})
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry, telemetry disabled", zap.Error(err))
		} else {
			defer func() {
				if err := otelShutdown(context.Background()); err != nil {
					logger.Logger.Warn("OpenTelemetry shutdown error", zap.Error(err))
				}
			}()
			if err := metrics.InitMetrics(); err != nil {
				logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
			}
		}
	}

	// worker 没有行情提供商就没法干活，直接失败
	if err := providers.InitFlight(); err != nil {
		logger.Logger.Fatal("Failed to initialize flight provider", zap.Error(err))
	}
	if err := providers.InitHotel(); err != nil {
		logger.Logger.Fatal("Failed to initialize hotel provider", zap.Error(err))
	}

	if err := queue.DeclareQueues(); err != nil {
		logger.Logger.Fatal("Failed to declare queues", zap.Error(err))
	}

	// 装配工作流：repo、适配器、重试策略都在这里显式注入
	db := database.DB()
	trips := repository.NewTripRepository(db)
	runs := repository.NewRunRepository(db)
	snapshots := repository.NewSnapshotRepository(db)

	fetchRetry := retry.Config{
		MaxAttempts:    uint(config.Cfg.FetchMaxAttempts),
		BaseDelay:      time.Duration(config.Cfg.FetchBackoffBaseMs) * time.Millisecond,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: time.Duration(config.Cfg.FetchAttemptTimeout) * time.Second,
	}

	priceCheck := workflow.NewPriceCheck(
		trips,
		runs,
		snapshots,
		fetch.NewFlightAdapter(providers.Flight()),
		fetch.NewHotelAdapter(providers.Hotel()),
		fetchRetry,
		logger.Logger,
	)

	refreshAll := workflow.NewRefreshAll(
		cache.NewRedisLocker(),
		trips,
		priceCheck,
		time.Duration(config.Cfg.RefreshLockTTLMinutes)*time.Minute,
		config.Cfg.RefreshConcurrency,
		logger.Logger,
	)

	queue.SetWorkflows(priceCheck, refreshAll)

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	done := make(chan struct{})
	go func() {
		queue.StartAllConsumers(ctx)
		close(done)
	}()

	select {
	case <-done:
		// 消费者自行退出（比如 MQ 连接断开），不走宽限期
		logger.Logger.Warn("Consumers exited before shutdown signal")
	case <-ctx.Done():
		// 收到关停信号：消费者停止接收新消息，在宽限期内 drain 在途消息
		grace := time.Duration(config.Cfg.ShutdownGraceSeconds) * time.Second
		logger.Logger.Info("Draining in-flight messages", zap.Duration("grace", grace))

		select {
		case <-done:
			logger.Logger.Info("All consumers drained")
		case <-time.After(grace):
			logger.Logger.Warn("Shutdown grace period exceeded, exiting with messages in flight")
		}
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
