package model

// PriceCheckMessage 单行程价格检查消息。
// MessageID 既用于消费端幂等检查，也作为 price_check_runs 的 workflow_id。
type PriceCheckMessage struct {
	MessageID   string `json:"message_id"`
	TripID      int64  `json:"trip_id"`
	TriggeredBy string `json:"triggered_by"` // manual, scheduler, refresh_all
	ScheduledAt string `json:"scheduled_at"`
}

// RefreshAllMessage 按用户触发的全量刷新消息。
type RefreshAllMessage struct {
	MessageID   string `json:"message_id"`
	UserID      int64  `json:"user_id"`
	TriggeredBy string `json:"triggered_by"`
	ScheduledAt string `json:"scheduled_at"`
}
