package fetch

import (
	"context"
	"encoding/json"
	"time"

	"FareWatch/internal/model"
	"FareWatch/pkg/providers"
)

// FlightResult 航班腿的归一化结果。
// Offers 与 Err 通常只有一个非空；零结果的成功两者都为空，不算错误。
type FlightResult struct {
	Offers []providers.FlightOffer `json:"offers"`
	Raw    json.RawMessage         `json:"raw,omitempty"`
	Err    string                  `json:"error,omitempty"`
}

// HotelResult 酒店腿的归一化结果。
type HotelResult struct {
	Offers []providers.HotelOffer `json:"offers"`
	Raw    json.RawMessage        `json:"raw,omitempty"`
	Err    string                 `json:"error,omitempty"`
}

// FlightAdapter 把行程快照翻译成一次航班查询并归一化结果。
// 预期内的提供商失败（鉴权、非法请求）被吸收进 FlightResult.Err；
// 只有可重试的瞬时故障（限流、5xx、网络）以 error 形式返回，交给上层重试策略。
type FlightAdapter interface {
	Fetch(ctx context.Context, details *model.TripDetails) (FlightResult, error)
}

// HotelAdapter 同 FlightAdapter，酒店腿。
type HotelAdapter interface {
	Fetch(ctx context.Context, details *model.TripDetails) (HotelResult, error)
}

// FlightProviderAdapter 基于 providers.FlightClient 的默认实现。
type FlightProviderAdapter struct {
	client providers.FlightClient
}

func NewFlightAdapter(client providers.FlightClient) *FlightProviderAdapter {
	return &FlightProviderAdapter{client: client}
}

func (a *FlightProviderAdapter) Fetch(ctx context.Context, details *model.TripDetails) (FlightResult, error) {
	q := providers.FlightQuery{
		Origin:      details.Trip.Origin,
		Destination: details.Trip.Destination,
		DepartDate:  details.Trip.DepartDateString(),
		ReturnDate:  details.Trip.ReturnDateString(),
		Adults:      details.Trip.Adults,
		Cabin:       details.FlightPrefs.Cabin,
	}

	res, err := a.client.SearchFlights(ctx, q)
	if err != nil {
		if providers.IsTransient(err) {
			return FlightResult{}, err
		}
		// 预期内的永久失败，吸收为腿级错误
		return FlightResult{Offers: []providers.FlightOffer{}, Err: err.Error()}, nil
	}

	return FlightResult{Offers: res.Offers, Raw: res.Raw}, nil
}

// HotelProviderAdapter 基于 providers.HotelClient 的默认实现。
type HotelProviderAdapter struct {
	client providers.HotelClient
}

func NewHotelAdapter(client providers.HotelClient) *HotelProviderAdapter {
	return &HotelProviderAdapter{client: client}
}

func (a *HotelProviderAdapter) Fetch(ctx context.Context, details *model.TripDetails) (HotelResult, error) {
	trip := details.Trip

	// 入住从出发日开始；单程行程没有返程日期，按一晚询价
	checkOut := trip.DepartDate.Add(24 * time.Hour)
	if trip.RoundTrip && trip.ReturnDate != nil {
		checkOut = *trip.ReturnDate
	}

	q := providers.HotelQuery{
		CityCode:      trip.Destination,
		CheckIn:       trip.DepartDateString(),
		CheckOut:      checkOut.Format("2006-01-02"),
		Rooms:         details.HotelPrefs.Rooms,
		AdultsPerRoom: details.HotelPrefs.AdultsPerRoom,
	}

	res, err := a.client.SearchHotels(ctx, q)
	if err != nil {
		if providers.IsTransient(err) {
			return HotelResult{}, err
		}
		return HotelResult{Offers: []providers.HotelOffer{}, Err: err.Error()}, nil
	}

	return HotelResult{Offers: res.Offers, Raw: res.Raw}, nil
}
