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

// HotelQuery 描述一次酒店报价查询。
type HotelQuery struct {
	CityCode      string // IATA 城市码
	CheckIn       string // YYYY-MM-DD
	CheckOut      string
	Rooms         int
	AdultsPerRoom int
}

// HotelOffer 是归一化后的酒店报价。
type HotelOffer struct {
	Provider  string  `json:"provider"`
	HotelName string  `json:"hotel_name"`
	RoomType  string  `json:"room_type"`
	View      string  `json:"view,omitempty"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
}

// HotelSearchResult 携带归一化报价和原始响应体（审计用）。
type HotelSearchResult struct {
	Offers []HotelOffer
	Raw    json.RawMessage
}

// HotelClient 酒店行情客户端接口
type HotelClient interface {
	// SearchHotels 查询酒店报价。零结果不是错误。
	SearchHotels(ctx context.Context, q HotelQuery) (*HotelSearchResult, error)
}

var (
	hotelClient HotelClient
	hotelOnce   sync.Once
	hotelErr    error
)

// InitHotel 初始化酒店行情客户端
func InitHotel() error {
	hotelOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.HotelProvider {
		case "amadeus":
			hotelClient = NewAmadeusClient(cfg.AmadeusBaseURL, cfg.AmadeusAPIKey, cfg.AmadeusAPISecret)
		case "mock":
			hotelClient = NewMockHotelClient()
		default:
			hotelErr = fmt.Errorf("unsupported hotel provider: %s", cfg.HotelProvider)
		}

		if hotelErr != nil {
			logger.Logger.Error("Failed to initialize hotel client", zap.Error(hotelErr))
			return
		}

		logger.Logger.Info("Hotel client initialized successfully",
			zap.String("provider", cfg.HotelProvider),
		)
	})

	return hotelErr
}

func Hotel() HotelClient {
	if hotelClient == nil {
		panic("hotel client not initialized, call providers.InitHotel() first")
	}
	return hotelClient
}
