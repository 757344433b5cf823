package cache

import (
	"context"
	"time"

	"FareWatch/storage/redis"
)

// 基于 SetNX 的分布式刷新锁：同一用户同一时刻只允许一个全量刷新在跑。
// TTL 是崩溃兜底，进程死掉后锁最多保留一个 TTL 周期。
const (
	refreshLockPrefix = "lock:refresh"
)

// RedisLocker 实现 workflow.Locker，锁数据放 Redis。
type RedisLocker struct{}

func NewRedisLocker() *RedisLocker {
	return &RedisLocker{}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullkey := redis.Key(refreshLockPrefix, key)

	result, err := redis.Client().SetNX(ctx, fullkey, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return result, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	fullkey := redis.Key(refreshLockPrefix, key)

	return redis.Client().Del(ctx, fullkey).Err()
}
