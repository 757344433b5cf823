package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"FareWatch/config"
	"FareWatch/pkg/logger"
)

// FlightQuery 描述一次航班报价查询。
type FlightQuery struct {
	Origin      string // IATA 机场/城市码
	Destination string
	DepartDate  string // YYYY-MM-DD
	ReturnDate  string // 单程为空
	Adults      int
	Cabin       string // ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST
}

// FlightOffer 是归一化后的航班报价。
type FlightOffer struct {
	Provider string  `json:"provider"`
	Airline  string  `json:"airline"`
	Stops    int     `json:"stops"`
	Cabin    string  `json:"cabin"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// FlightSearchResult 携带归一化报价和原始响应体（审计用）。
type FlightSearchResult struct {
	Offers []FlightOffer
	Raw    json.RawMessage
}

// FlightClient 航班行情客户端接口
type FlightClient interface {
	// SearchFlights 查询航班报价。
	// 零结果不是错误，返回空 Offers 即可。
	SearchFlights(ctx context.Context, q FlightQuery) (*FlightSearchResult, error)
}

var (
	flightClient FlightClient
	flightOnce   sync.Once
	flightErr    error
)

// InitFlight 初始化航班行情客户端
func InitFlight() error {
	flightOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.FlightProvider {
		case "amadeus":
			flightClient = NewAmadeusClient(cfg.AmadeusBaseURL, cfg.AmadeusAPIKey, cfg.AmadeusAPISecret)
		case "kiwi":
			flightClient = NewKiwiClient(cfg.KiwiBaseURL, cfg.KiwiAPIKey)
		case "mock":
			flightClient = NewMockFlightClient()
		default:
			flightErr = fmt.Errorf("unsupported flight provider: %s", cfg.FlightProvider)
		}

		if flightErr != nil {
			logger.Logger.Error("Failed to initialize flight client", zap.Error(flightErr))
			return
		}

		logger.Logger.Info("Flight client initialized successfully",
			zap.String("provider", cfg.FlightProvider),
		)
	})

	return flightErr
}

func Flight() FlightClient {
	if flightClient == nil {
		panic("flight client not initialized, call providers.InitFlight() first")
	}
	return flightClient
}
