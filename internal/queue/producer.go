package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"FareWatch/internal/model"
	"FareWatch/storage/mq"
)

// 两个任务队列：单行程价格检查和按用户的全量刷新。
// 默认交换机按队列名路由。
const (
	QueuePriceCheck = "worker.price_check.run"
	QueueRefreshAll = "worker.refresh_all.run"
)

// DeclareQueues 声明所有任务队列，worker 和 scheduler 启动时各调一次。
func DeclareQueues() error {
	if err := mq.DeclareQueue(QueuePriceCheck); err != nil {
		return fmt.Errorf("failed to declare %s: %w", QueuePriceCheck, err)
	}
	if err := mq.DeclareQueue(QueueRefreshAll); err != nil {
		return fmt.Errorf("failed to declare %s: %w", QueueRefreshAll, err)
	}
	return nil
}

// EnqueuePriceCheck 投递一条单行程价格检查消息，返回消息 id（即 workflow id）。
func EnqueuePriceCheck(tripID int64, triggeredBy string) (string, error) {
	msg := model.PriceCheckMessage{
		MessageID:   uuid.NewString(),
		TripID:      tripID,
		TriggeredBy: triggeredBy,
		ScheduledAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := mq.PublishMessage("", QueuePriceCheck, msg); err != nil {
		return "", fmt.Errorf("failed to enqueue price check for trip %d: %w", tripID, err)
	}

	return msg.MessageID, nil
}

// EnqueueRefreshAll 投递一条全量刷新消息。
func EnqueueRefreshAll(userID int64, triggeredBy string) (string, error) {
	msg := model.RefreshAllMessage{
		MessageID:   uuid.NewString(),
		UserID:      userID,
		TriggeredBy: triggeredBy,
		ScheduledAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := mq.PublishMessage("", QueueRefreshAll, msg); err != nil {
		return "", fmt.Errorf("failed to enqueue refresh for user %d: %w", userID, err)
	}

	return msg.MessageID, nil
}
