package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Config 定义某一类活动的重试策略。
type Config struct {
	MaxAttempts    uint          // 总尝试次数上限（含首次）
	BaseDelay      time.Duration // 首次重试的退避间隔
	MaxDelay       time.Duration // 退避间隔上限
	AttemptTimeout time.Duration // 单次尝试的超时，0 表示不限制
}

// Permanent 标记 err 为不可重试错误，重试循环会立刻停止并返回它。
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do 以指数退避执行 fn，直到成功、尝试耗尽或 ctx 取消。
// 每次尝试都在独立的带超时子 context 中运行。
func Do[T any](ctx context.Context, cfg Config, name string, log *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.BaseDelay > 0 {
		b.InitialInterval = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}

	attempt := 0
	op := func() (T, error) {
		attempt++

		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
			defer cancel()
		}

		v, err := fn(attemptCtx)
		if err != nil && log != nil {
			log.Warn("Retryable operation failed",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Uint("max_attempts", cfg.MaxAttempts),
				zap.Error(err),
			)
		}
		return v, err
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxAttempts))
	}

	return backoff.Retry(ctx, op, opts...)
}
