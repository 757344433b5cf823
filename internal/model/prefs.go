package model

import "strings"

// StopsMode 中转限制模式
type StopsMode string

const (
	StopsModeAny     StopsMode = "any"     // 不限
	StopsModeNonstop StopsMode = "nonstop" // 仅直飞
	StopsModeMax     StopsMode = "max"     // 不超过 MaxStops 次中转
)

// RoomSelectionMode 房型选择模式
type RoomSelectionMode string

const (
	RoomSelectCheapest       RoomSelectionMode = "cheapest"
	RoomSelectPreferredFirst RoomSelectionMode = "preferred_first"
)

// FlightPrefs 航班偏好，与 Trip 一对一。
type FlightPrefs struct {
	BaseModel
	TripID    int64     `gorm:"uniqueIndex;not null" json:"trip_id"`
	StopsMode StopsMode `gorm:"size:16;not null;default:'any'" json:"stops_mode"`
	MaxStops  int       `gorm:"not null;default:0" json:"max_stops"`
	Cabin     string    `gorm:"size:24" json:"cabin"`    // ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST
	Airlines  string    `gorm:"size:255" json:"airlines"` // 逗号分隔的航司码，空表示不限
}

// AirlineList 返回航司白名单，空列表表示不限。
func (p *FlightPrefs) AirlineList() []string {
	return splitCSV(p.Airlines)
}

// HotelPrefs 酒店偏好，与 Trip 一对一。
// PreferredRoomTypes / PreferredViews 只做软排序，不做硬过滤。
type HotelPrefs struct {
	BaseModel
	TripID             int64             `gorm:"uniqueIndex;not null" json:"trip_id"`
	Rooms              int               `gorm:"not null;default:1" json:"rooms"`
	AdultsPerRoom      int               `gorm:"not null;default:2" json:"adults_per_room"`
	RoomSelectionMode  RoomSelectionMode `gorm:"size:24;not null;default:'cheapest'" json:"room_selection_mode"`
	PreferredRoomTypes string            `gorm:"size:255" json:"preferred_room_types"` // 逗号分隔
	PreferredViews     string            `gorm:"size:255" json:"preferred_views"`      // 逗号分隔
}

func (p *HotelPrefs) RoomTypeList() []string {
	return splitCSV(p.PreferredRoomTypes)
}

func (p *HotelPrefs) ViewList() []string {
	return splitCSV(p.PreferredViews)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
