package filter

import (
	"encoding/json"
	"sort"
	"strings"

	"FareWatch/internal/fetch"
	"FareWatch/internal/model"
	"FareWatch/pkg/providers"
)

// Output 偏好过滤的产出。RawData 始终包含两条腿的审计数据，
// 无论该腿成功与否。
type Output struct {
	Flights []providers.FlightOffer `json:"flights"`
	Hotels  []providers.HotelOffer  `json:"hotels"`
	RawData map[string]interface{}  `json:"raw_data"`
}

// Apply 纯函数：对两条腿的抓取结果按用户偏好过滤排序。
// 某条腿带错误时该腿输出空列表，另一条腿正常过滤，互不影响。
func Apply(fr fetch.FlightResult, hr fetch.HotelResult, fp *model.FlightPrefs, hp *model.HotelPrefs) Output {
	out := Output{
		Flights: []providers.FlightOffer{},
		Hotels:  []providers.HotelOffer{},
		RawData: map[string]interface{}{
			"flights": legAudit(fr.Raw, fr.Err),
			"hotels":  legAudit(hr.Raw, hr.Err),
		},
	}

	if fr.Err == "" {
		out.Flights = FilterFlights(fr.Offers, fp)
	}
	if hr.Err == "" {
		out.Hotels = RankHotels(hr.Offers, hp)
	}

	return out
}

func legAudit(raw json.RawMessage, errText string) map[string]interface{} {
	audit := map[string]interface{}{}
	if len(raw) > 0 {
		audit["raw"] = json.RawMessage(raw)
	}
	if errText != "" {
		audit["error"] = errText
	}
	return audit
}

// FilterFlights 按偏好硬过滤航班报价，再按价格升序排列。
// 中转限制与航司白名单是硬条件；舱位只在报价带舱位信息时比较。
func FilterFlights(offers []providers.FlightOffer, p *model.FlightPrefs) []providers.FlightOffer {
	allowed := make(map[string]struct{})
	for _, a := range p.AirlineList() {
		allowed[strings.ToUpper(a)] = struct{}{}
	}

	kept := make([]providers.FlightOffer, 0, len(offers))
	for _, o := range offers {
		switch p.StopsMode {
		case model.StopsModeNonstop:
			if o.Stops > 0 {
				continue
			}
		case model.StopsModeMax:
			if o.Stops > p.MaxStops {
				continue
			}
		}

		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToUpper(o.Airline)]; !ok {
				continue
			}
		}

		if p.Cabin != "" && o.Cabin != "" && !strings.EqualFold(o.Cabin, p.Cabin) {
			continue
		}

		kept = append(kept, o)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Price < kept[j].Price
	})

	return kept
}

// RankHotels 对酒店报价排序。房型和景观偏好只做软排序，
// 空偏好列表表示不限，任何报价都不会因为偏好不匹配被剔除。
func RankHotels(offers []providers.HotelOffer, p *model.HotelPrefs) []providers.HotelOffer {
	ranked := make([]providers.HotelOffer, len(offers))
	copy(ranked, offers)

	score := func(o providers.HotelOffer) int {
		s := 0
		for _, rt := range p.RoomTypeList() {
			if strings.EqualFold(o.RoomType, rt) {
				s += 2
				break
			}
		}
		for _, v := range p.ViewList() {
			if strings.EqualFold(o.View, v) {
				s++
				break
			}
		}
		return s
	}

	switch p.RoomSelectionMode {
	case model.RoomSelectPreferredFirst:
		// 偏好匹配优先，同分按价格
		sort.SliceStable(ranked, func(i, j int) bool {
			si, sj := score(ranked[i]), score(ranked[j])
			if si != sj {
				return si > sj
			}
			return ranked[i].Price < ranked[j].Price
		})
	default:
		// cheapest：价格优先，同价按偏好匹配度
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Price != ranked[j].Price {
				return ranked[i].Price < ranked[j].Price
			}
			return score(ranked[i]) > score(ranked[j])
		})
	}

	return ranked
}
