// Package agent orchestrates a weather query end to end: extraction,
// geocoding, forecast retrieval, and summary generation, dispatched through
// a schema-validated tool registry.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/common/metrics"
	"weather-agent/internal/common/observability"
	"weather-agent/internal/extract"
	"weather-agent/internal/forecast"
	"weather-agent/internal/geocode"
	"weather-agent/internal/llm"
	"weather-agent/internal/tools"
)

// Tool names exposed by the agent registry.
const (
	ToolProcessWeatherRequest = "process_weather_request"
	ToolGetCoordinates        = "get_coordinates"
	ToolParseWeatherQuery     = "parse_weather_query"
)

// Extractor derives a place and an ordered date range from free text.
type Extractor interface {
	Extract(ctx context.Context, question string) (extract.Result, error)
}

// Agent wires the pipeline stages together. It holds no per-request state;
// the registry is built once in New and never mutated afterwards.
type Agent struct {
	extractor   Extractor
	geocoder    geocode.Geocoder
	forecast    forecast.Provider
	chat        llm.Client
	summaryTemp float64
	registry    *tools.Registry
	obs         *observability.Observability
	tracer      trace.Tracer
	logger      logger.Logger
}

func New(
	extractor Extractor,
	geocoder geocode.Geocoder,
	provider forecast.Provider,
	chat llm.Client,
	summaryTemperature float64,
	obs *observability.Observability,
	log logger.Logger,
) (*Agent, error) {
	a := &Agent{
		extractor:   extractor,
		geocoder:    geocoder,
		forecast:    provider,
		chat:        chat,
		summaryTemp: summaryTemperature,
		registry:    tools.NewRegistry(),
		obs:         obs,
		tracer:      otel.Tracer("weather-agent"),
		logger:      log.With(map[string]interface{}{"component": "agent"}),
	}
	if obs != nil {
		a.tracer = obs.Tracer()
	}

	if err := a.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return a, nil
}

func querySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"required": []interface{}{"query"},
	}
}

func (a *Agent) registerTools() error {
	toolset := []tools.Tool{
		{
			Name:        ToolProcessWeatherRequest,
			Description: "Answer a natural-language weather question with forecast data and a summary",
			InputSchema: querySchema(),
			Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return a.process(ctx, args["query"].(string))
			},
		},
		{
			Name:        ToolGetCoordinates,
			Description: "Resolve a place name to latitude and longitude",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"place": map[string]interface{}{"type": "string", "minLength": 1},
				},
				"required": []interface{}{"place"},
			},
			Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				place := args["place"].(string)
				coords, err := a.geocoder.Lookup(ctx, place)
				if err != nil {
					return nil, err
				}
				return CoordinatesResult{Place: place, Latitude: coords.Lat, Longitude: coords.Lon, Success: true}, nil
			},
		},
		{
			Name:        ToolParseWeatherQuery,
			Description: "Extract the place and resolved date range from a weather question",
			InputSchema: querySchema(),
			Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				result, err := a.extractor.Extract(ctx, args["query"].(string))
				if err != nil {
					return nil, err
				}
				if result.Empty() {
					return nil, commonerrors.NewExtractionFailedError("no place recognized in query")
				}
				return result, nil
			},
		},
	}

	for _, tool := range toolset {
		if err := a.registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// ListTools returns the registered tool descriptors in registration order.
func (a *Agent) ListTools() []tools.Descriptor {
	return a.registry.List()
}

// InvokeTool dispatches a named tool through schema validation.
func (a *Agent) InvokeTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	return a.registry.Invoke(ctx, name, args)
}

// Handle answers one weather query. Every failure is a typed StandardError;
// a nil error always carries a populated result.
func (a *Agent) Handle(ctx context.Context, query string) (*WeatherResult, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "agent.handle")
	defer span.End()

	result, err := a.registry.Invoke(ctx, ToolProcessWeatherRequest, map[string]interface{}{"query": query})

	outcome := "success"
	if err != nil {
		outcome = string(commonerrors.Normalize(err).Code)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	metrics.RequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if a.obs != nil {
		a.obs.RecordRequest(ctx, outcome)
		a.obs.RecordRequestDuration(ctx, time.Since(start), outcome)
	}

	if err != nil {
		a.logger.WithError(err).Warn("weather request failed", map[string]interface{}{"outcome": outcome})
		return nil, err
	}

	weather, ok := result.(*WeatherResult)
	if !ok {
		return nil, commonerrors.Normalize(fmt.Errorf("unexpected result type %T", result))
	}
	return weather, nil
}

func (a *Agent) process(ctx context.Context, query string) (*WeatherResult, error) {
	ctx, span := a.tracer.Start(ctx, "agent.extract")
	extraction, err := a.extractor.Extract(ctx, query)
	span.End()
	if err != nil {
		return nil, err
	}
	if extraction.Empty() {
		return nil, commonerrors.NewExtractionFailedError("no place or date range recognized in query")
	}

	ctx, span = a.tracer.Start(ctx, "agent.geocode")
	coords, err := a.geocoder.Lookup(ctx, extraction.Place)
	span.End()
	if err != nil {
		return nil, err
	}

	ctx, span = a.tracer.Start(ctx, "agent.forecast")
	days, err := a.forecast.FetchDaily(ctx, coords.Lat, coords.Lon, extraction.StartDate, extraction.EndDate)
	span.End()
	if err != nil {
		return nil, err
	}

	weatherData := make([]WeatherDay, 0, len(days))
	for _, day := range days {
		weatherData = append(weatherData, WeatherDay{
			Date:          day.Date,
			MaxTemp:       day.MaxTemp,
			MinTemp:       day.MinTemp,
			Precipitation: day.Precipitation,
			WindSpeed:     day.WindSpeed,
		})
	}

	summary := formatSummary(extraction.Place, weatherData)
	summary = a.paraphrase(ctx, query, summary)

	a.logger.Info("weather request processed", map[string]interface{}{
		"place":     extraction.Place,
		"startDate": extraction.StartDate,
		"endDate":   extraction.EndDate,
		"days":      len(weatherData),
	})

	return &WeatherResult{
		Success:     true,
		Location:    extraction.Place,
		StartDate:   extraction.StartDate,
		EndDate:     extraction.EndDate,
		WeatherData: weatherData,
		Summary:     summary,
		RawQuery:    query,
	}, nil
}

// formatSummary builds the deterministic summary: one inline sentence for a
// single day, a bulleted list otherwise, in received order.
func formatSummary(location string, days []WeatherDay) string {
	if len(days) == 0 {
		return fmt.Sprintf("No forecast data available for %s.", location)
	}

	if len(days) == 1 {
		day := days[0]
		return fmt.Sprintf(
			"Weather in %s on %s: High %.1f°C, Low %.1f°C, Precipitation %.1fmm, Wind %.1fkm/h",
			location, day.Date, day.MaxTemp, day.MinTemp, day.Precipitation, day.WindSpeed,
		)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather forecast for %s for %d days:\n", location, len(days))
	for _, day := range days {
		fmt.Fprintf(&b, "• %s: %.1f°C/%.1f°C, %.1fmm rain, %.1fkm/h wind\n",
			day.Date, day.MaxTemp, day.MinTemp, day.Precipitation, day.WindSpeed)
	}
	return strings.TrimRight(b.String(), "\n")
}

// paraphrase asks the chat model to restate the deterministic summary
// conversationally. Any failure keeps the deterministic text.
func (a *Agent) paraphrase(ctx context.Context, query, summary string) string {
	if a.chat == nil {
		return summary
	}

	reply, err := a.chat.Complete(ctx, []llm.Message{
		{
			Role: llm.RoleSystem,
			Content: "You are a friendly weather assistant. Rewrite the forecast summary " +
				"as a short conversational answer to the user's question. Keep every " +
				"number and date exactly as given. Do not add information.",
		},
		{Role: llm.RoleUser, Content: query},
		{Role: llm.RoleAssistant, Content: summary},
		{Role: llm.RoleUser, Content: "Please rewrite that summary conversationally."},
	}, a.summaryTemp)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			a.logger.WithError(err).Warn("summary paraphrase failed, using deterministic text", nil)
		}
		return summary
	}
	return strings.TrimSpace(reply)
}
