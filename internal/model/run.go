package model

import (
	"time"

	"gorm.io/datatypes"
)

// RunStep 价格检查状态机的阶段
type RunStep string

const (
	RunStepPending   RunStep = "pending"
	RunStepLoaded    RunStep = "loaded"
	RunStepFetched   RunStep = "fetched"
	RunStepCompleted RunStep = "completed"
	RunStepFailed    RunStep = "failed"
)

// PriceCheckRun 是一次价格检查的持久化执行记录。
// WorkflowID 来自触发消息的 message_id，唯一索引保证同一次投递只有一条记录；
// 消息被重投时按 WorkflowID 找回旧记录，从已完成的阶段之后继续执行，
// 已经抓取成功的腿不会重新抓取，已写入的快照不会重复写入。
type PriceCheckRun struct {
	ID            int64          `gorm:"primaryKey" json:"id"` // snowflake
	WorkflowID    string         `gorm:"size:64;uniqueIndex;not null" json:"workflow_id"`
	TripID        int64          `gorm:"index;not null" json:"trip_id"`
	Step          RunStep        `gorm:"size:16;not null;default:'pending'" json:"step"`
	TripDetails   datatypes.JSON `json:"trip_details"`  // Load 阶段的行程快照，保证续跑时输入一致
	FlightResult  datatypes.JSON `json:"flight_result"` // fetch.FlightResult 序列化
	HotelResult   datatypes.JSON `json:"hotel_result"`  // fetch.HotelResult 序列化
	FlightError   string         `gorm:"size:512" json:"flight_error"`
	HotelError    string         `gorm:"size:512" json:"hotel_error"`
	SnapshotID    *int64         `json:"snapshot_id"`
	FailureReason string         `gorm:"size:512" json:"failure_reason"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

// PriceCheckResult 是价格检查的调用方可见结论。
// 单腿失败仍然是 Success=true（降级成功），对应的错误字段会被填充。
type PriceCheckResult struct {
	Success     bool   `json:"success"`
	SnapshotID  int64  `json:"snapshot_id,omitempty"`
	FlightError string `json:"flight_error,omitempty"`
	HotelError  string `json:"hotel_error,omitempty"`
}

// TripOutcome 全量刷新中单个行程的结论。
type TripOutcome struct {
	TripID int64            `json:"trip_id"`
	Result PriceCheckResult `json:"result"`
	Err    string           `json:"error,omitempty"`
}

// RefreshSummary 一次全量刷新的汇总。
type RefreshSummary struct {
	UserID    int64         `json:"user_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []TripOutcome `json:"outcomes"`
}
