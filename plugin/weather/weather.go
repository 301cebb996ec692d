// Package weather provides the optional current-conditions lookup used to
// flavor recommendation prompts. Failures degrade to "no weather context";
// nothing in the pipeline depends on this succeeding.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Provider is the weather context provider interface.
type Provider interface {
	// CurrentCondition returns a short condition label ("clear", "rain", ...)
	// for a coordinate.
	CurrentCondition(ctx context.Context, lat, lng float64) (string, error)
}

// Config holds the weather client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements Provider on an Open-Meteo style current weather API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new weather client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.open-meteo.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// weatherCodeLabels maps WMO weather codes to condition labels.
var weatherCodeLabels = map[int]string{
	0:  "clear",
	1:  "mostly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "fog",
	51: "drizzle",
	53: "drizzle",
	55: "drizzle",
	61: "rain",
	63: "rain",
	65: "heavy rain",
	71: "snow",
	73: "snow",
	75: "heavy snow",
	80: "showers",
	81: "showers",
	82: "heavy showers",
	95: "thunderstorm",
}

// CurrentCondition implements Provider.CurrentCondition.
func (c *Client) CurrentCondition(ctx context.Context, lat, lng float64) (string, error) {
	endpoint := fmt.Sprintf("%s/forecast?latitude=%f&longitude=%f&current_weather=true", c.config.BaseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build weather request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "weather request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("weather service returned %d", resp.StatusCode)
	}

	var parsed struct {
		CurrentWeather struct {
			WeatherCode int `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode weather response")
	}

	if label, ok := weatherCodeLabels[parsed.CurrentWeather.WeatherCode]; ok {
		return label, nil
	}
	return "unknown", nil
}
