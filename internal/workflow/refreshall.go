package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"FareWatch/internal/model"
	fwerrors "FareWatch/pkg/errors"
	"FareWatch/pkg/metrics"
)

// RefreshAll 按用户触发的全量刷新工作流。
//
// 锁是建议性的：它只阻止同一用户的全量刷新互相重叠，
// 并不阻止单行程的手动刷新与全量刷新同时跑同一个行程——
// 快照只追加，最坏情况是多出一条快照，历史查询不受影响。
type RefreshAll struct {
	locker      Locker
	trips       TripLoader
	child       ChildRunner
	lockTTL     time.Duration
	concurrency int
	logger      *zap.Logger
}

func NewRefreshAll(
	locker Locker,
	trips TripLoader,
	child ChildRunner,
	lockTTL time.Duration,
	concurrency int,
	logger *zap.Logger,
) *RefreshAll {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RefreshAll{
		locker:      locker,
		trips:       trips,
		child:       child,
		lockTTL:     lockTTL,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Execute 执行一次全量刷新。
// 锁已被占用时立刻以 RefreshInProgress 失败，不排队等待；
// 单个行程的失败只记入汇总，不影响其他行程，也不影响整次运行的成败。
// 锁在 defer 里释放，子任务 panic 也会走到；进程直接死掉时由 TTL 兜底。
func (w *RefreshAll) Execute(ctx context.Context, workflowID string, userID int64) (model.RefreshSummary, error) {
	summary := model.RefreshSummary{UserID: userID}
	lockKey := fmt.Sprintf("%d", userID)

	ctx, span := otel.Tracer("farewatch/workflow").Start(ctx, "refresh_all",
		trace.WithAttributes(
			attribute.String("workflow_id", workflowID),
			attribute.Int64("user_id", userID),
		),
	)
	defer span.End()

	ok, err := w.locker.TryLock(ctx, lockKey, w.lockTTL)
	if err != nil {
		metrics.RecordRefreshRun(ctx, "lock_error")
		return summary, fmt.Errorf("%w: %v", fwerrors.LockUnavailable, err)
	}
	if !ok {
		metrics.RecordLockConflict(ctx)
		metrics.RecordRefreshRun(ctx, "rejected")
		return summary, fmt.Errorf("user %d: %w", userID, fwerrors.RefreshInProgress)
	}

	defer func() {
		// 释放不依赖请求 context，取消后锁也要还回去
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if uerr := w.locker.Unlock(unlockCtx, lockKey); uerr != nil {
			w.logger.Error("Failed to release refresh lock, TTL will reclaim it",
				zap.Int64("user_id", userID),
				zap.Error(uerr),
			)
		}
	}()

	tripIDs, err := w.trips.ListActiveTripIDs(ctx, userID)
	if err != nil {
		metrics.RecordRefreshRun(ctx, "enumeration_error")
		return summary, err
	}

	summary.Total = len(tripIDs)
	if len(tripIDs) == 0 {
		metrics.RecordRefreshRun(ctx, "completed")
		return summary, nil
	}

	w.logger.Info("Refresh-all started",
		zap.String("workflow_id", workflowID),
		zap.Int64("user_id", userID),
		zap.Int("trip_count", len(tripIDs)),
	)

	// 行程间 fan-out，信号量限并发，best-effort 收集结果，无顺序保证
	var (
		wg         sync.WaitGroup
		outcomesMu sync.Mutex
		semaphore  = make(chan struct{}, w.concurrency)
	)

	for _, tripID := range tripIDs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(tripID int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcome := model.TripOutcome{TripID: tripID}

			// 单个子任务的 panic 不能带崩整次刷新
			defer func() {
				if r := recover(); r != nil {
					outcome.Err = fmt.Sprintf("panic: %v", r)
					w.logger.Error("Price check panicked",
						zap.Int64("trip_id", tripID),
						zap.Any("panic", r),
					)
				}

				outcomesMu.Lock()
				summary.Outcomes = append(summary.Outcomes, outcome)
				outcomesMu.Unlock()
			}()

			// 子工作流 id 由父 id 和行程 id 决定，重投时子执行也能幂等续跑
			childID := fmt.Sprintf("%s-trip-%d", workflowID, tripID)

			result, err := w.child.Execute(ctx, childID, tripID)
			outcome.Result = result
			if err != nil {
				outcome.Err = err.Error()
			}
		}(tripID)
	}

	wg.Wait()

	for _, o := range summary.Outcomes {
		if o.Err == "" && o.Result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	metrics.RecordRefreshRun(ctx, "completed")

	w.logger.Info("Refresh-all finished",
		zap.String("workflow_id", workflowID),
		zap.Int64("user_id", userID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}
