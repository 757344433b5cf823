package mq

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"FareWatch/pkg/errors"
	"FareWatch/pkg/logger"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 消费队列直到 ctx 取消。
// 取消后先停止投递，再把已经在内存里的消息处理完（drain），随后返回。
// handler 返回 SkipMessageError 时消息被确认并跳过，返回其他错误时 nack 重新入队。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack = false
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	// ctx 取消后 Cancel 消费者，服务端停止投递，msgs 通道随后关闭
	go func() {
		<-ctx.Done()
		if err := ch.Cancel(opts.ConsumerTag, false); err != nil {
			logger.Logger.Warn("Failed to cancel consumer",
				zap.String("consumer_tag", opts.ConsumerTag),
				zap.Error(err),
			)
		}
	}()

	for msg := range msgs {
		// drain 阶段用不受取消影响的 context 处理剩余消息
		handleCtx := ctx
		if ctx.Err() != nil {
			handleCtx = context.Background()
		}

		if err := opts.Handler(handleCtx, msg.Body); err != nil {
			if errors.IsSkip(err) {
				logger.Logger.Info("Skipping message",
					zap.String("queue", opts.Queue),
					zap.String("reason", err.Error()),
				)
				msg.Ack(false)
				continue
			}

			logger.Logger.Error("Failed to process message",
				zap.String("queue", opts.Queue),
				zap.String("consumer_tag", opts.ConsumerTag),
				zap.Error(err),
			)

			msg.Nack(false, true) // requeue = true
			continue
		}

		msg.Ack(false)
	}

	logger.Logger.Info("Consumer stopped",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
	)

	return nil
}
