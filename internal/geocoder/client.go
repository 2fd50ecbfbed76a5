// Package geocoder предоставляет клиент внешнего геокодера и кеш координат.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/foodcart/foodcart-system/internal/model"
)

// DefaultBaseURL — адрес геокодера Яндекса.
const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x"

// Client инкапсулирует HTTP-взаимодействие с внешним геокодером.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// geocodeResponse повторяет структуру ответа геокодера: список найденных
// объектов, у каждого позиция в виде строки "долгота широта".
type geocodeResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// NewClient создаёт HTTP-клиент геокодера с указанным адресом и API-ключом.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc.StandardClient(),
	}
}

// FetchCoordinates запрашивает у геокодера координаты адреса.
// Пустой список результатов — нормальный исход: возвращается (nil, nil).
func (c *Client) FetchCoordinates(ctx context.Context, address string) (*model.Coordinate, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("geocoder client not configured")
	}
	if address == "" {
		return nil, nil
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("geocode", address)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	places := result.Response.GeoObjectCollection.FeatureMember
	if len(places) == 0 {
		return nil, nil
	}

	// Первый результат — наиболее релевантный.
	return parsePos(places[0].GeoObject.Point.Pos)
}

func parsePos(pos string) (*model.Coordinate, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed position %q", pos)
	}

	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude: %w", err)
	}

	return &model.Coordinate{Latitude: lat, Longitude: lon}, nil
}
