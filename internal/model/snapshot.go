package model

import (
	"time"

	"gorm.io/datatypes"
)

// PriceSnapshot 价格快照，仅追加，落库后不再更新。
// 三个价格字段各自独立可空：某条腿失败时价格为 NULL，但整行仍然写入，
// RawData 中始终包含两条腿的审计数据（成功的原始响应或失败描述）。
type PriceSnapshot struct {
	ID          int64          `gorm:"primaryKey" json:"id"` // snowflake
	TripID      int64          `gorm:"index;not null" json:"trip_id"`
	FlightPrice *float64       `json:"flight_price"`
	HotelPrice  *float64       `json:"hotel_price"`
	TotalPrice  *float64       `json:"total_price"`
	RawData     datatypes.JSON `json:"raw_data"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}
