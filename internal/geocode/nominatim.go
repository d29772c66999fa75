// Package geocode resolves free-text place names to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/httpclient"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/common/metrics"
)

const providerName = "geocoding"

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder is the lookup contract consumed by the agent. The first candidate
// wins; zero candidates is a LOCATION_NOT_FOUND failure.
type Geocoder interface {
	Lookup(ctx context.Context, place string) (Coordinates, error)
}

// NominatimClient implements Geocoder against the Nominatim search API.
type NominatimClient struct {
	cfg     config.GeocodingConfig
	httpCfg httpclient.Config
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

func NewNominatimClient(cfg config.GeocodingConfig, log logger.Logger) *NominatimClient {
	return &NominatimClient{
		cfg: cfg,
		httpCfg: httpclient.Config{
			Client: &http.Client{},
			Backoff: httpclient.BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		breaker: httpclient.NewBreaker(providerName),
		logger:  log.With(map[string]interface{}{"provider": providerName}),
	}
}

// Nominatim serializes lat/lon as strings.
type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *NominatimClient) Lookup(ctx context.Context, place string) (Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetTimeout())
	defer cancel()

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", place)
		values.Set("format", "jsonv2")
		values.Set("limit", "1")

		req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		return req, nil
	}

	start := time.Now()
	resp, err := httpclient.Do(ctx, c.httpCfg, c.breaker, buildRequest)
	metrics.ProviderCallDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			metrics.ProviderCalls.WithLabelValues(providerName, "timeout").Inc()
			return Coordinates{}, commonerrors.NewUpstreamTimeoutError(providerName)
		}
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return Coordinates{}, commonerrors.NewExternalServiceError(providerName, err)
	}
	defer resp.Body.Close()

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return Coordinates{}, commonerrors.NewExternalServiceError(providerName, fmt.Errorf("decode response: %w", err))
	}

	if len(candidates) == 0 {
		metrics.ProviderCalls.WithLabelValues(providerName, "not_found").Inc()
		return Coordinates{}, commonerrors.NewLocationNotFoundError(place)
	}

	lat, err := strconv.ParseFloat(candidates[0].Lat, 64)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return Coordinates{}, commonerrors.NewExternalServiceError(providerName, fmt.Errorf("parse latitude: %w", err))
	}
	lon, err := strconv.ParseFloat(candidates[0].Lon, 64)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return Coordinates{}, commonerrors.NewExternalServiceError(providerName, fmt.Errorf("parse longitude: %w", err))
	}

	metrics.ProviderCalls.WithLabelValues(providerName, "ok").Inc()
	c.logger.Info("coordinates found", map[string]interface{}{
		"place": place,
		"lat":   lat,
		"lon":   lon,
	})

	return Coordinates{Lat: lat, Lon: lon}, nil
}
