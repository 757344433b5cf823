package model

import "time"

// TripStatus 行程状态枚举
type TripStatus string

const (
	TripStatusActive TripStatus = "active"
	TripStatusPaused TripStatus = "paused"
)

// Trip 表示一条被追踪的行程。
// paused 状态的行程不参与全量刷新。
type Trip struct {
	BaseModel
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	Origin      string     `gorm:"size:3;not null" json:"origin"`      // IATA 码
	Destination string     `gorm:"size:3;not null" json:"destination"` // IATA 码
	DepartDate  time.Time  `gorm:"not null" json:"depart_date"`
	ReturnDate  *time.Time `json:"return_date,omitempty"`
	RoundTrip   bool       `gorm:"not null;default:true" json:"round_trip"`
	Adults      int        `gorm:"not null;default:1" json:"adults"`
	Children    int        `gorm:"not null;default:0" json:"children"`
	Status      TripStatus `gorm:"size:16;not null;default:'active';index" json:"status"`
}

// TripDetails 是进入一次价格检查的只读快照：行程本体加两份偏好。
// 偏好在单次检查期间视为不可变。
type TripDetails struct {
	Trip        Trip
	FlightPrefs FlightPrefs
	HotelPrefs  HotelPrefs
}

// DepartDateString 返回 YYYY-MM-DD 格式的出发日期。
func (t *Trip) DepartDateString() string {
	return t.DepartDate.Format("2006-01-02")
}

// ReturnDateString 返回 YYYY-MM-DD 格式的返程日期，单程返回空串。
func (t *Trip) ReturnDateString() string {
	if !t.RoundTrip || t.ReturnDate == nil {
		return ""
	}
	return t.ReturnDate.Format("2006-01-02")
}
