package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-agent/internal/agent"
	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/tools"
)

type stubAgent struct {
	result     *agent.WeatherResult
	handleErr  error
	toolResult interface{}
	toolErr    error
	lastQuery  string
}

func (s *stubAgent) Handle(ctx context.Context, query string) (*agent.WeatherResult, error) {
	s.lastQuery = query
	return s.result, s.handleErr
}

func (s *stubAgent) ListTools() []tools.Descriptor {
	return []tools.Descriptor{
		{Name: agent.ToolProcessWeatherRequest, Description: "answer weather questions"},
		{Name: agent.ToolGetCoordinates, Description: "geocode a place"},
		{Name: agent.ToolParseWeatherQuery, Description: "parse a weather query"},
	}
}

func (s *stubAgent) InvokeTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	return s.toolResult, s.toolErr
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "weather-agent", Version: "1.0.0"},
		Server: config.ServerConfig{Port: 8080, ReadTimeout: 5000},
	}
}

func newTestServer(stub *stubAgent) *Server {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(testConfig(), stub, clock, logger.NewNoOpLogger())
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestWeatherEndpointSuccess(t *testing.T) {
	stub := &stubAgent{result: &agent.WeatherResult{
		Success:   true,
		Location:  "Paris",
		StartDate: "2024-01-02",
		EndDate:   "2024-01-02",
		Summary:   "Cool and dry.",
		RawQuery:  "weather in Paris tomorrow?",
	}}
	s := newTestServer(stub)

	resp := postJSON(t, s, "/api/v1/weather", map[string]string{"query": "weather in Paris tomorrow?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Paris", body["location"])
	assert.Equal(t, "weather in Paris tomorrow?", stub.lastQuery)
}

func TestWeatherEndpointTypedErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"extraction failed", commonerrors.NewExtractionFailedError("nothing recognized"), http.StatusUnprocessableEntity},
		{"location not found", commonerrors.NewLocationNotFoundError("Atlantis"), http.StatusNotFound},
		{"forecast unavailable", commonerrors.NewForecastUnavailableError("provider 500"), http.StatusBadGateway},
		{"upstream timeout", commonerrors.NewUpstreamTimeoutError("forecast"), http.StatusGatewayTimeout},
		{"tool validation", commonerrors.NewToolValidationError("process_weather_request", "query required"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&stubAgent{handleErr: tc.err})

			resp := postJSON(t, s, "/api/v1/weather", map[string]string{"query": "anything"})
			require.Equal(t, tc.status, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWeatherEndpointRejectsMissingQuery(t *testing.T) {
	s := newTestServer(&stubAgent{})

	resp := postJSON(t, s, "/api/v1/weather", map[string]string{"user_id": "u-1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestWeatherEndpointRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(&stubAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/weather", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToolsEndpointListsDescriptors(t *testing.T) {
	s := newTestServer(&stubAgent{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	toolsList, ok := body["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, toolsList, 3)

	first, ok := toolsList[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, agent.ToolProcessWeatherRequest, first["name"])
}

func TestCoordinatesEndpoint(t *testing.T) {
	stub := &stubAgent{toolResult: agent.CoordinatesResult{
		Place: "Paris", Latitude: 48.85, Longitude: 2.35, Success: true,
	}}
	s := newTestServer(stub)

	resp := postJSON(t, s, "/api/v1/coordinates", map[string]string{"place": "Paris"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Paris", body["place"])
	assert.InDelta(t, 48.85, body["latitude"].(float64), 1e-9)
}

func TestCoordinatesEndpointNotFound(t *testing.T) {
	stub := &stubAgent{toolErr: commonerrors.NewLocationNotFoundError("Atlantis")}
	s := newTestServer(stub)

	resp := postJSON(t, s, "/api/v1/coordinates", map[string]string{"place": "Atlantis"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParseDateEndpointUsesInjectedClock(t *testing.T) {
	s := newTestServer(&stubAgent{})

	resp := postJSON(t, s, "/api/v1/parse-date", map[string]string{"expression": "tomorrow"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "2024-01-02", body["iso_date"])
	assert.Equal(t, true, body["success"])
}

func TestRootEndpointServiceInfo(t *testing.T) {
	s := newTestServer(&stubAgent{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "weather-agent", body["service"])
	assert.Equal(t, "1.0.0", body["version"])

	names, ok := body["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, names, 3)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubAgent{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["agent_ready"])
	assert.Equal(t, "2024-01-01T12:00:00Z", body["timestamp"])
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestServer(&stubAgent{result: &agent.WeatherResult{Success: true}})

	payload, _ := json.Marshal(map[string]string{"query": "weather?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/weather", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}
