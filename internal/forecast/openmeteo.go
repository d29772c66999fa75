// Package forecast fetches per-day weather records for coordinates and an
// ISO date range.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/httpclient"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/common/metrics"
)

const providerName = "forecast"

// Day is one calendar day of forecast data, in provider order.
type Day struct {
	Date          string  `json:"date"`
	MaxTemp       float64 `json:"max_temp"`
	MinTemp       float64 `json:"min_temp"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
}

// Provider is the forecast contract consumed by the agent.
type Provider interface {
	FetchDaily(ctx context.Context, lat, lon float64, startDate, endDate string) ([]Day, error)
}

// OpenMeteoClient implements Provider against the Open-Meteo forecast API.
type OpenMeteoClient struct {
	cfg     config.ForecastConfig
	httpCfg httpclient.Config
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

func NewOpenMeteoClient(cfg config.ForecastConfig, log logger.Logger) *OpenMeteoClient {
	return &OpenMeteoClient{
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

type dailyPayload struct {
	Daily struct {
		Time          []string  `json:"time"`
		MaxTemp       []float64 `json:"temperature_2m_max"`
		MinTemp       []float64 `json:"temperature_2m_min"`
		Precipitation []float64 `json:"precipitation_sum"`
		WindSpeed     []float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
}

// FetchDaily returns one Day per calendar day in [startDate, endDate], in
// the order the provider sent them.
func (c *OpenMeteoClient) FetchDaily(ctx context.Context, lat, lon float64, startDate, endDate string) ([]Day, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetTimeout())
	defer cancel()

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,windspeed_10m_max")
		values.Set("timezone", "auto")
		values.Set("start_date", startDate)
		values.Set("end_date", endDate)

		return http.NewRequest(http.MethodGet, c.cfg.BaseURL+"?"+values.Encode(), nil)
	}

	start := time.Now()
	resp, err := httpclient.Do(ctx, c.httpCfg, c.breaker, buildRequest)
	metrics.ProviderCallDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			metrics.ProviderCalls.WithLabelValues(providerName, "timeout").Inc()
			return nil, commonerrors.NewUpstreamTimeoutError(providerName)
		}
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return nil, commonerrors.NewForecastUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	var payload dailyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return nil, commonerrors.NewForecastUnavailableError(fmt.Sprintf("decode response: %v", err))
	}

	daily := payload.Daily
	if len(daily.Time) == 0 ||
		len(daily.MaxTemp) != len(daily.Time) ||
		len(daily.MinTemp) != len(daily.Time) ||
		len(daily.Precipitation) != len(daily.Time) ||
		len(daily.WindSpeed) != len(daily.Time) {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return nil, commonerrors.NewForecastUnavailableError("daily series missing or inconsistent")
	}

	days := make([]Day, 0, len(daily.Time))
	for i := range daily.Time {
		days = append(days, Day{
			Date:          daily.Time[i],
			MaxTemp:       daily.MaxTemp[i],
			MinTemp:       daily.MinTemp[i],
			Precipitation: daily.Precipitation[i],
			WindSpeed:     daily.WindSpeed[i],
		})
	}

	metrics.ProviderCalls.WithLabelValues(providerName, "ok").Inc()
	c.logger.Info("forecast retrieved", map[string]interface{}{
		"days":      len(days),
		"startDate": startDate,
		"endDate":   endDate,
	})

	return days, nil
}
