package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fwerrors "FareWatch/pkg/errors"
)

const kiwiProviderName = "kiwi"

// KiwiClient 通过 Kiwi Tequila API 查询航班报价。只支持航班，不支持酒店。
type KiwiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewKiwiClient(baseURL, apiKey string) *KiwiClient {
	return &KiwiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Kiwi 的舱位编码：M 经济 W 超经 C 公务 F 头等
var kiwiCabinCodes = map[string]string{
	"ECONOMY":         "M",
	"PREMIUM_ECONOMY": "W",
	"BUSINESS":        "C",
	"FIRST":           "F",
}

type kiwiSearchResponse struct {
	Currency string `json:"currency"`
	Data     []struct {
		Airlines []string `json:"airlines"`
		Price    float64  `json:"price"`
		Route    []struct {
			Return int `json:"return"` // 0 去程 1 回程
		} `json:"route"`
	} `json:"data"`
}

func (c *KiwiClient) SearchFlights(ctx context.Context, q FlightQuery) (*FlightSearchResult, error) {
	params := url.Values{}
	params.Set("fly_from", q.Origin)
	params.Set("fly_to", q.Destination)
	params.Set("date_from", kiwiDate(q.DepartDate))
	params.Set("date_to", kiwiDate(q.DepartDate))
	if q.ReturnDate != "" {
		params.Set("return_from", kiwiDate(q.ReturnDate))
		params.Set("return_to", kiwiDate(q.ReturnDate))
	}
	params.Set("adults", strconv.Itoa(max(q.Adults, 1)))
	if code, ok := kiwiCabinCodes[q.Cabin]; ok {
		params.Set("selected_cabins", code)
	}
	params.Set("limit", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: kiwiProviderName, Code: fwerrors.ProviderUnavailable.Code, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: kiwiProviderName, Code: fwerrors.ProviderUnavailable.Code, Message: err.Error(), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(kiwiProviderName, resp.StatusCode, string(body))
	}

	var parsed kiwiSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode kiwi search response: %w", err)
	}

	offers := make([]FlightOffer, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		offer := FlightOffer{
			Provider: kiwiProviderName,
			Cabin:    q.Cabin,
			Price:    d.Price,
			Currency: parsed.Currency,
		}
		if len(d.Airlines) > 0 {
			offer.Airline = d.Airlines[0]
		}
		// 只统计去程的中转次数
		outbound := 0
		for _, r := range d.Route {
			if r.Return == 0 {
				outbound++
			}
		}
		if outbound > 0 {
			offer.Stops = outbound - 1
		}
		offers = append(offers, offer)
	}

	return &FlightSearchResult{Offers: offers, Raw: json.RawMessage(body)}, nil
}

// kiwiDate 将 YYYY-MM-DD 转成 Kiwi 要求的 DD/MM/YYYY。
func kiwiDate(isoDate string) string {
	parts := strings.Split(isoDate, "-")
	if len(parts) != 3 {
		return isoDate
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}
