package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Config holds the place search client configuration.
type Config struct {
	// BaseURL is the root of the text search API.
	BaseURL string
	// APIKey authenticates requests; sent as the "key" query parameter.
	APIKey string
	// Timeout is the HTTP timeout for search requests.
	Timeout time.Duration
}

// DefaultConfig returns the default place search configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://maps.googleapis.com/maps/api/place",
		Timeout: 10 * time.Second,
	}
}

// Client implements SearchService over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new place search client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           float64  `json:"rating"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// TextSearch implements SearchService.TextSearch.
func (c *Client) TextSearch(ctx context.Context, query string, location LatLng, radiusMeters int) ([]Place, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("location", fmt.Sprintf("%f,%f", location.Lat, location.Lng))
	params.Set("radius", fmt.Sprintf("%d", radiusMeters))
	if c.config.APIKey != "" {
		params.Set("key", c.config.APIKey)
	}

	endpoint := c.config.BaseURL + "/textsearch/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build place search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "place search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("place search returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode place search response")
	}
	if parsed.Status != "" && parsed.Status != "OK" && parsed.Status != "ZERO_RESULTS" {
		return nil, errors.Errorf("place search status: %s", parsed.Status)
	}

	results := make([]Place, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Place{
			ID:      r.PlaceID,
			Name:    r.Name,
			Address: r.FormattedAddress,
			Rating:  r.Rating,
			Types:   r.Types,
			Location: LatLng{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
		})
	}
	return results, nil
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           float64  `json:"rating"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Details implements DetailsService.Details.
func (c *Client) Details(ctx context.Context, placeID string) (*Place, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	if c.config.APIKey != "" {
		params.Set("key", c.config.APIKey)
	}

	endpoint := c.config.BaseURL + "/details/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build place details request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "place details request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("place details returned %d", resp.StatusCode)
	}

	var parsed detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode place details response")
	}
	if parsed.Status != "" && parsed.Status != "OK" {
		return nil, errors.Errorf("place details status: %s", parsed.Status)
	}

	return &Place{
		ID:      parsed.Result.PlaceID,
		Name:    parsed.Result.Name,
		Address: parsed.Result.FormattedAddress,
		Rating:  parsed.Result.Rating,
		Types:   parsed.Result.Types,
		Location: LatLng{
			Lat: parsed.Result.Geometry.Location.Lat,
			Lng: parsed.Result.Geometry.Location.Lng,
		},
	}, nil
}
