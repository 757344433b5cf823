package cache

import (
	"context"
	"time"

	"FareWatch/storage/redis"
)

// 消息幂等标记：只在消息处理到终态（成功或被确认的致命失败）后写入。
// 处理中途崩溃不会留下标记，broker 重投的消息会被重新处理，
// 工作流按 workflow_id 幂等，从执行记录续跑，重复处理是安全的。
const (
	messageProcessedPrefix = "message:processed"
	enqueueMarkPrefix      = "refresh:scheduled"

	processedTTL = 48 * time.Hour
)

// IsMessageProcessed 判断消息是否已经处理到终态。
func IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)

	n, err := redis.Client().Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkMessageProcessed 消息到达终态后写标记，之后的重复投递直接跳过。
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return redis.Client().Set(ctx, key, 1, processedTTL).Err()
}

// TryMarkRefreshScheduled 调度器防重：interval 窗口内同一用户只投递一次刷新消息。
func TryMarkRefreshScheduled(ctx context.Context, userID string, window time.Duration) (bool, error) {
	key := redis.Key(enqueueMarkPrefix, userID)
	return redis.Client().SetNX(ctx, key, 1, window).Result()
}
