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
	"sync"
	"time"

	fwerrors "FareWatch/pkg/errors"
)

const amadeusProviderName = "amadeus"

// AmadeusClient 通过 Amadeus Self-Service API 查询航班与酒店报价。
// 同一个实例可同时作为 FlightClient 和 HotelClient 使用。
type AmadeusClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client

	// access token 缓存，过期前 60s 主动刷新
	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewAmadeusClient(baseURL, apiKey, apiSecret string) *AmadeusClient {
	return &AmadeusClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type amadeusTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *AmadeusClient) getToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > 60*time.Second {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: amadeusProviderName, Code: fwerrors.ProviderUnavailable.Code, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(amadeusProviderName, resp.StatusCode, string(body))
	}

	var tok amadeusTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to decode amadeus token response: %w", err)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// get 携带 bearer token 执行 GET，返回原始响应体。
func (c *AmadeusClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: amadeusProviderName, Code: fwerrors.ProviderUnavailable.Code, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: amadeusProviderName, Code: fwerrors.ProviderUnavailable.Code, Message: err.Error(), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		// 鉴权过期时丢弃缓存的 token，下次调用重新获取
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokenMu.Lock()
			c.token = ""
			c.tokenMu.Unlock()
		}
		return nil, classifyStatus(amadeusProviderName, resp.StatusCode, string(body))
	}

	return body, nil
}

type amadeusFlightResponse struct {
	Data []struct {
		ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
		Itineraries            []struct {
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			GrandTotal string `json:"grandTotal"`
			Currency   string `json:"currency"`
		} `json:"price"`
		TravelerPricings []struct {
			FareDetailsBySegment []struct {
				Cabin string `json:"cabin"`
			} `json:"fareDetailsBySegment"`
		} `json:"travelerPricings"`
	} `json:"data"`
}

func (c *AmadeusClient) SearchFlights(ctx context.Context, q FlightQuery) (*FlightSearchResult, error) {
	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.DepartDate)
	if q.ReturnDate != "" {
		params.Set("returnDate", q.ReturnDate)
	}
	params.Set("adults", strconv.Itoa(max(q.Adults, 1)))
	if q.Cabin != "" {
		params.Set("travelClass", q.Cabin)
	}
	params.Set("max", "50")

	body, err := c.get(ctx, "/v2/shopping/flight-offers", params)
	if err != nil {
		return nil, err
	}

	var parsed amadeusFlightResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode amadeus flight response: %w", err)
	}

	offers := make([]FlightOffer, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		offer := FlightOffer{
			Provider: amadeusProviderName,
			Cabin:    q.Cabin,
			Currency: d.Price.Currency,
		}
		if len(d.ValidatingAirlineCodes) > 0 {
			offer.Airline = d.ValidatingAirlineCodes[0]
		}
		// stops 取去程段数减一
		if len(d.Itineraries) > 0 {
			offer.Stops = len(d.Itineraries[0].Segments) - 1
		}
		if len(d.TravelerPricings) > 0 && len(d.TravelerPricings[0].FareDetailsBySegment) > 0 {
			offer.Cabin = d.TravelerPricings[0].FareDetailsBySegment[0].Cabin
		}
		if price, err := strconv.ParseFloat(d.Price.GrandTotal, 64); err == nil {
			offer.Price = price
		}
		offers = append(offers, offer)
	}

	return &FlightSearchResult{Offers: offers, Raw: json.RawMessage(body)}, nil
}

type amadeusHotelResponse struct {
	Data []struct {
		Hotel struct {
			Name string `json:"name"`
		} `json:"hotel"`
		Offers []struct {
			Room struct {
				TypeEstimated struct {
					Category string `json:"category"`
				} `json:"typeEstimated"`
				Description struct {
					Text string `json:"text"`
				} `json:"description"`
			} `json:"room"`
			Price struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

func (c *AmadeusClient) SearchHotels(ctx context.Context, q HotelQuery) (*HotelSearchResult, error) {
	params := url.Values{}
	params.Set("cityCode", q.CityCode)
	params.Set("checkInDate", q.CheckIn)
	params.Set("checkOutDate", q.CheckOut)
	params.Set("roomQuantity", strconv.Itoa(max(q.Rooms, 1)))
	params.Set("adults", strconv.Itoa(max(q.AdultsPerRoom, 1)))
	params.Set("bestRateOnly", "false")

	body, err := c.get(ctx, "/v2/shopping/hotel-offers", params)
	if err != nil {
		return nil, err
	}

	var parsed amadeusHotelResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode amadeus hotel response: %w", err)
	}

	offers := make([]HotelOffer, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		for _, o := range d.Offers {
			offer := HotelOffer{
				Provider:  amadeusProviderName,
				HotelName: d.Hotel.Name,
				RoomType:  o.Room.TypeEstimated.Category,
				View:      extractView(o.Room.Description.Text),
				Currency:  o.Price.Currency,
			}
			if price, err := strconv.ParseFloat(o.Price.Total, 64); err == nil {
				offer.Price = price
			}
			offers = append(offers, offer)
		}
	}

	return &HotelSearchResult{Offers: offers, Raw: json.RawMessage(body)}, nil
}

// extractView 从房型描述中提取景观关键词，提供给软排序使用。
func extractView(desc string) string {
	lower := strings.ToLower(desc)
	for _, v := range []string{"sea view", "ocean view", "city view", "garden view", "pool view"} {
		if strings.Contains(lower, v) {
			return strings.ToUpper(strings.ReplaceAll(strings.TrimSuffix(v, " view"), " ", "_")) + "_VIEW"
		}
	}
	return ""
}
