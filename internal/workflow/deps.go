package workflow

import (
	"context"
	"time"

	"FareWatch/internal/model"
)

// 工作流的外部协作方都以接口出现，进程启动时显式装配，
// 不依赖包级单例，测试可以直接替换。

// TripLoader 行程读取。
type TripLoader interface {
	LoadTripDetails(ctx context.Context, tripID int64) (*model.TripDetails, error)
	ListActiveTripIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RunStore 价格检查执行记录的持久化。
type RunStore interface {
	FindOrCreate(ctx context.Context, workflowID string, tripID int64) (*model.PriceCheckRun, error)
	Update(ctx context.Context, run *model.PriceCheckRun) error
}

// SnapshotStore 价格快照写入。
type SnapshotStore interface {
	Save(ctx context.Context, snap *model.PriceSnapshot) error
}

// Locker TTL 互斥锁，acquire 是原子的 set-if-not-exists。
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ChildRunner 全量刷新用来驱动子工作流的入口。
type ChildRunner interface {
	Execute(ctx context.Context, workflowID string, tripID int64) (model.PriceCheckResult, error)
}
