package schedule

// 刷新调度器：定期扫描有活跃行程的用户，为每个用户投递一条全量刷新消息。
// 投递端用 Redis 窗口标记防重，消费端的 TTL 锁再兜一层。

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"FareWatch/internal/cache"
	"FareWatch/internal/queue"
	"FareWatch/internal/repository"
)

// RefreshScheduler 全量刷新调度器。
type RefreshScheduler struct {
	trips      *repository.TripRepository
	logger     *zap.Logger
	jobRunning bool
	jobMu      sync.Mutex
}

func NewRefreshScheduler(trips *repository.TripRepository, logger *zap.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		trips:  trips,
		logger: logger,
	}
}

// ScheduleRefreshes 扫描一轮并投递刷新消息（定时任务调用）。
// window 是防重窗口：同一用户在窗口内至多投递一条刷新消息。
func (s *RefreshScheduler) ScheduleRefreshes(ctx context.Context, window time.Duration) error {
	s.jobMu.Lock()
	if s.jobRunning {
		s.jobMu.Unlock()
		s.logger.Info("Refresh scheduling job already running, skipping")
		return nil
	}
	s.jobRunning = true
	s.jobMu.Unlock()

	defer func() {
		s.jobMu.Lock()
		s.jobRunning = false
		s.jobMu.Unlock()
	}()

	startTime := time.Now()

	userIDs, err := s.trips.ListUserIDsWithActiveTrips(ctx)
	if err != nil {
		s.logger.Error("Failed to list users with active trips", zap.Error(err))
		return err
	}

	if len(userIDs) == 0 {
		s.logger.Info("No users with active trips, nothing to schedule")
		return nil
	}

	enqueued := 0
	skipped := 0
	errCount := 0

	for _, userID := range userIDs {
		ok, err := cache.TryMarkRefreshScheduled(ctx, strconv.FormatInt(userID, 10), window)
		if err != nil {
			s.logger.Warn("Failed to check refresh schedule mark",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			errCount++
			continue
		}
		if !ok {
			skipped++
			continue
		}

		messageID, err := queue.EnqueueRefreshAll(userID, "scheduler")
		if err != nil {
			s.logger.Error("Failed to enqueue refresh message",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			errCount++
			continue
		}

		s.logger.Info("Enqueued refresh message",
			zap.Int64("user_id", userID),
			zap.String("message_id", messageID),
		)
		enqueued++
	}

	s.logger.Info("Refresh scheduling round completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("user_count", len(userIDs)),
		zap.Int("enqueued", enqueued),
		zap.Int("skipped", skipped),
		zap.Int("error_count", errCount),
	)

	if errCount > 0 {
		return fmt.Errorf("refresh scheduling completed with %d errors", errCount)
	}

	return nil
}
