package providers

import (
	"context"
	"encoding/json"
	"sync"
)

// MockFlightClient 可配置的航班行情 mock，实现 FlightClient 接口
type MockFlightClient struct {
	mu    sync.Mutex
	Calls []FlightQuery

	// Offers 为下一次调用返回的报价
	Offers []FlightOffer

	// FailWith 非 nil 时每次调用返回该错误
	FailWith error

	// FailTimes 大于 0 时接下来 FailTimes 次调用返回 FailWith，之后恢复成功
	FailTimes int
}

func NewMockFlightClient() *MockFlightClient {
	return &MockFlightClient{
		Calls: make([]FlightQuery, 0),
	}
}

func (m *MockFlightClient) SearchFlights(ctx context.Context, q FlightQuery) (*FlightSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, q)

	if m.FailWith != nil {
		if m.FailTimes == 0 {
			return nil, m.FailWith
		}
		if m.FailTimes > 0 {
			m.FailTimes--
			if m.FailTimes == 0 {
				err := m.FailWith
				m.FailWith = nil
				return nil, err
			}
			return nil, m.FailWith
		}
	}

	raw, _ := json.Marshal(map[string]interface{}{"data": m.Offers, "provider": "mock"})
	return &FlightSearchResult{Offers: m.Offers, Raw: raw}, nil
}

func (m *MockFlightClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockHotelClient 可配置的酒店行情 mock，实现 HotelClient 接口
type MockHotelClient struct {
	mu    sync.Mutex
	Calls []HotelQuery

	Offers    []HotelOffer
	FailWith  error
	FailTimes int
}

func NewMockHotelClient() *MockHotelClient {
	return &MockHotelClient{
		Calls: make([]HotelQuery, 0),
	}
}

func (m *MockHotelClient) SearchHotels(ctx context.Context, q HotelQuery) (*HotelSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, q)

	if m.FailWith != nil {
		if m.FailTimes == 0 {
			return nil, m.FailWith
		}
		if m.FailTimes > 0 {
			m.FailTimes--
			if m.FailTimes == 0 {
				err := m.FailWith
				m.FailWith = nil
				return nil, err
			}
			return nil, m.FailWith
		}
	}

	raw, _ := json.Marshal(map[string]interface{}{"data": m.Offers, "provider": "mock"})
	return &HotelSearchResult{Offers: m.Offers, Raw: raw}, nil
}

func (m *MockHotelClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
