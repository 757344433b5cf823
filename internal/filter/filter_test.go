package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FareWatch/internal/fetch"
	"FareWatch/internal/model"
	"FareWatch/pkg/providers"
)

func TestFilterFlightsNonstop(t *testing.T) {
	offers := []providers.FlightOffer{
		{Provider: "mock", Airline: "CA", Stops: 0, Price: 200},
		{Provider: "mock", Airline: "MU", Stops: 1, Price: 150},
	}
	prefs := &model.FlightPrefs{StopsMode: model.StopsModeNonstop}

	got := FilterFlights(offers, prefs)

	// 更便宜的经停报价被剔除，直飞偏好不以价格折衷
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Stops)
	assert.Equal(t, 200.0, got[0].Price)
}

func TestFilterFlightsMaxStops(t *testing.T) {
	offers := []providers.FlightOffer{
		{Airline: "CA", Stops: 0, Price: 300},
		{Airline: "MU", Stops: 1, Price: 200},
		{Airline: "CZ", Stops: 2, Price: 100},
	}
	prefs := &model.FlightPrefs{StopsMode: model.StopsModeMax, MaxStops: 1}

	got := FilterFlights(offers, prefs)

	require.Len(t, got, 2)
	// 价格升序
	assert.Equal(t, 200.0, got[0].Price)
	assert.Equal(t, 300.0, got[1].Price)
}

func TestFilterFlightsAirlineWhitelist(t *testing.T) {
	offers := []providers.FlightOffer{
		{Airline: "CA", Stops: 0, Price: 300},
		{Airline: "mu", Stops: 0, Price: 200},
		{Airline: "CZ", Stops: 0, Price: 100},
	}
	prefs := &model.FlightPrefs{Airlines: "CA, MU"}

	got := FilterFlights(offers, prefs)

	// 白名单匹配不区分大小写
	require.Len(t, got, 2)
	assert.Equal(t, "mu", got[0].Airline)
	assert.Equal(t, "CA", got[1].Airline)
}

func TestFilterFlightsCabinOnlyWhenPresent(t *testing.T) {
	offers := []providers.FlightOffer{
		{Airline: "CA", Cabin: "BUSINESS", Price: 900},
		{Airline: "MU", Cabin: "", Price: 200}, // 提供商未返回舱位，不剔除
		{Airline: "CZ", Cabin: "ECONOMY", Price: 150},
	}
	prefs := &model.FlightPrefs{Cabin: "ECONOMY"}

	got := FilterFlights(offers, prefs)

	require.Len(t, got, 2)
	assert.Equal(t, 150.0, got[0].Price)
	assert.Equal(t, 200.0, got[1].Price)
}

func TestFilterFlightsEmptyPrefsKeepEverything(t *testing.T) {
	offers := []providers.FlightOffer{
		{Airline: "CA", Stops: 2, Price: 300},
		{Airline: "MU", Stops: 0, Price: 500},
	}

	got := FilterFlights(offers, &model.FlightPrefs{})

	require.Len(t, got, 2)
	assert.Equal(t, 300.0, got[0].Price)
}

func TestRankHotelsCheapest(t *testing.T) {
	offers := []providers.HotelOffer{
		{HotelName: "A", RoomType: "SUITE", Price: 400},
		{HotelName: "B", RoomType: "STANDARD", Price: 120},
		{HotelName: "C", RoomType: "DELUXE", Price: 250},
	}
	prefs := &model.HotelPrefs{RoomSelectionMode: model.RoomSelectCheapest}

	got := RankHotels(offers, prefs)

	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].HotelName)
	assert.Equal(t, "C", got[1].HotelName)
	assert.Equal(t, "A", got[2].HotelName)
}

func TestRankHotelsPreferredFirst(t *testing.T) {
	offers := []providers.HotelOffer{
		{HotelName: "Cheap", RoomType: "STANDARD", View: "", Price: 100},
		{HotelName: "SeaSuite", RoomType: "SUITE", View: "SEA", Price: 400},
		{HotelName: "Suite", RoomType: "SUITE", View: "", Price: 300},
	}
	prefs := &model.HotelPrefs{
		RoomSelectionMode:  model.RoomSelectPreferredFirst,
		PreferredRoomTypes: "SUITE",
		PreferredViews:     "SEA",
	}

	got := RankHotels(offers, prefs)

	require.Len(t, got, 3)
	// 房型 + 景观双匹配排最前，只匹配房型次之，偏好不匹配的垫底但不剔除
	assert.Equal(t, "SeaSuite", got[0].HotelName)
	assert.Equal(t, "Suite", got[1].HotelName)
	assert.Equal(t, "Cheap", got[2].HotelName)
}

func TestRankHotelsPrefsNeverDrop(t *testing.T) {
	offers := []providers.HotelOffer{
		{HotelName: "A", RoomType: "STANDARD", Price: 100},
	}
	prefs := &model.HotelPrefs{
		RoomSelectionMode:  model.RoomSelectPreferredFirst,
		PreferredRoomTypes: "SUITE",
	}

	got := RankHotels(offers, prefs)

	require.Len(t, got, 1)
}

func TestApplySingleLegError(t *testing.T) {
	fr := fetch.FlightResult{Err: "flight fetch: retries exhausted"}
	hr := fetch.HotelResult{
		Offers: []providers.HotelOffer{{HotelName: "A", Price: 120}},
		Raw:    json.RawMessage(`{"data":[]}`),
	}

	out := Apply(fr, hr, &model.FlightPrefs{}, &model.HotelPrefs{})

	// 航班腿失败输出空列表，酒店腿正常过滤
	assert.Empty(t, out.Flights)
	require.Len(t, out.Hotels, 1)

	// raw_data 两条腿的审计数据都在，失败腿带错误信息
	flightAudit, ok := out.RawData["flights"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "flight fetch: retries exhausted", flightAudit["error"])

	hotelAudit, ok := out.RawData["hotels"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, hotelAudit, "raw")
	assert.NotContains(t, hotelAudit, "error")
}

func TestApplyBothLegsOK(t *testing.T) {
	fr := fetch.FlightResult{
		Offers: []providers.FlightOffer{{Airline: "CA", Stops: 0, Price: 200}},
		Raw:    json.RawMessage(`{"data":[1]}`),
	}
	hr := fetch.HotelResult{
		Offers: []providers.HotelOffer{{HotelName: "A", Price: 100}},
		Raw:    json.RawMessage(`{"data":[2]}`),
	}

	out := Apply(fr, hr, &model.FlightPrefs{}, &model.HotelPrefs{})

	assert.Len(t, out.Flights, 1)
	assert.Len(t, out.Hotels, 1)
	assert.Contains(t, out.RawData, "flights")
	assert.Contains(t, out.RawData, "hotels")
}
