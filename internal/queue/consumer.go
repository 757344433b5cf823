package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"FareWatch/internal/cache"
	"FareWatch/internal/model"
	"FareWatch/internal/workflow"
	fwerrors "FareWatch/pkg/errors"
	"FareWatch/pkg/logger"
	"FareWatch/storage/mq"
)

var (
	priceCheckWF *workflow.PriceCheck
	refreshWF    *workflow.RefreshAll
)

// SetWorkflows 注入工作流实例，必须在 StartAllConsumers 之前调用。
func SetWorkflows(pc *workflow.PriceCheck, ra *workflow.RefreshAll) {
	priceCheckWF = pc
	refreshWF = ra
}

// 处理函数的协作方都是小接口，单测可以直接替换。
type priceCheckRunner interface {
	Execute(ctx context.Context, workflowID string, tripID int64) (model.PriceCheckResult, error)
}

type refreshRunner interface {
	Execute(ctx context.Context, workflowID string, userID int64) (model.RefreshSummary, error)
}

// messageMarks 终态幂等标记。
// 标记只在消息到达终态后写入：处理中途崩溃不留标记，
// broker 重投后消息会被重新处理，工作流从执行记录续跑。
type messageMarks interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

type redisMarks struct{}

func (redisMarks) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	return cache.IsMessageProcessed(ctx, messageID)
}

func (redisMarks) MarkProcessed(ctx context.Context, messageID string) error {
	return cache.MarkMessageProcessed(ctx, messageID)
}

// StartAllConsumers 启动全部消费者并阻塞到它们都退出。
// ctx 取消后各消费者自行 drain 在途消息再返回。
func StartAllConsumers(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := StartPriceCheckConsumer(ctx); err != nil {
			logger.Logger.Error("Price check consumer exited with error", zap.Error(err))
		}
	}()

	go func() {
		defer wg.Done()
		if err := StartRefreshAllConsumer(ctx); err != nil {
			logger.Logger.Error("Refresh consumer exited with error", zap.Error(err))
		}
	}()

	wg.Wait()
}

// priceCheckHandler 构造单行程价格检查消息的处理函数。
//
// 确认策略：
//   - 已有终态标记的重复消息 → ack 跳过
//   - 致命失败（行程已删除、执行已标记失败）→ 落终态标记后 ack，不再重投
//   - 其他错误（基础设施、未到终态）→ 不落标记，nack 重投，
//     重投的消息带着同一个 workflow id，从 run 记录的阶段续跑
func priceCheckHandler(wf priceCheckRunner, marks messageMarks) mq.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg model.PriceCheckMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			// 坏消息重投也不会变好
			return &fwerrors.SkipMessageError{Reason: fmt.Sprintf("malformed price check message: %v", err)}
		}

		done, err := marks.IsProcessed(ctx, msg.MessageID)
		if err != nil {
			// Redis 不可用时放弃幂等快路径继续处理，工作流本身按 workflow_id 幂等
			logger.Logger.Warn("Failed to check message idempotency mark, processing anyway",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		} else if done {
			return &fwerrors.SkipMessageError{Reason: "message already processed: " + msg.MessageID}
		}

		result, err := wf.Execute(ctx, msg.MessageID, msg.TripID)
		if err != nil {
			if errors.Is(err, fwerrors.TripNotFound) || errors.Is(err, workflow.ErrRunAlreadyFailed) {
				logger.Logger.Warn("Price check failed fatally, message acknowledged",
					zap.String("message_id", msg.MessageID),
					zap.Int64("trip_id", msg.TripID),
					zap.Error(err),
				)
				if merr := marks.MarkProcessed(ctx, msg.MessageID); merr != nil {
					logger.Logger.Warn("Failed to mark message processed", zap.Error(merr))
				}
				return nil
			}

			// 未到终态：不落标记，重投后继续驱动状态机
			return fmt.Errorf("price check for trip %d did not finish: %w", msg.TripID, err)
		}

		if merr := marks.MarkProcessed(ctx, msg.MessageID); merr != nil {
			logger.Logger.Warn("Failed to mark message processed", zap.Error(merr))
		}

		logger.Logger.Info("Price check message processed",
			zap.String("message_id", msg.MessageID),
			zap.Int64("trip_id", msg.TripID),
			zap.String("triggered_by", msg.TriggeredBy),
			zap.Bool("success", result.Success),
			zap.Int64("snapshot_id", result.SnapshotID),
		)
		return nil
	}
}

// refreshAllHandler 构造全量刷新消息的处理函数。
//
// 全量刷新不重投：锁被占用时按设计直接失败，枚举失败记为本次运行失败，
// 下一个调度周期自然会再来一轮。消息处理过就落终态标记。
func refreshAllHandler(wf refreshRunner, marks messageMarks) mq.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg model.RefreshAllMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return &fwerrors.SkipMessageError{Reason: fmt.Sprintf("malformed refresh message: %v", err)}
		}

		done, err := marks.IsProcessed(ctx, msg.MessageID)
		if err != nil {
			logger.Logger.Warn("Failed to check message idempotency mark, processing anyway",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		} else if done {
			return &fwerrors.SkipMessageError{Reason: "message already processed: " + msg.MessageID}
		}

		summary, err := wf.Execute(ctx, msg.MessageID, msg.UserID)
		if merr := marks.MarkProcessed(ctx, msg.MessageID); merr != nil {
			logger.Logger.Warn("Failed to mark message processed", zap.Error(merr))
		}

		if err != nil {
			if errors.Is(err, fwerrors.RefreshInProgress) {
				logger.Logger.Info("Refresh already in progress, message dropped",
					zap.String("message_id", msg.MessageID),
					zap.Int64("user_id", msg.UserID),
				)
				return nil
			}

			logger.Logger.Error("Refresh-all run failed",
				zap.String("message_id", msg.MessageID),
				zap.Int64("user_id", msg.UserID),
				zap.Error(err),
			)
			return nil
		}

		logger.Logger.Info("Refresh message processed",
			zap.String("message_id", msg.MessageID),
			zap.Int64("user_id", msg.UserID),
			zap.String("triggered_by", msg.TriggeredBy),
			zap.Int("total", summary.Total),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
		return nil
	}
}

// StartPriceCheckConsumer 消费单行程价格检查队列。
func StartPriceCheckConsumer(ctx context.Context) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         QueuePriceCheck,
		ConsumerTag:   "price_check_consumer",
		PrefetchCount: 10,
		Handler:       priceCheckHandler(priceCheckWF, redisMarks{}),
	})
}

// StartRefreshAllConsumer 消费全量刷新队列。
func StartRefreshAllConsumer(ctx context.Context) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         QueueRefreshAll,
		ConsumerTag:   "refresh_all_consumer",
		PrefetchCount: 2,
		Handler:       refreshAllHandler(refreshWF, redisMarks{}),
	})
}
