package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/logger"
)

func testGeocodingConfig(baseURL string) config.GeocodingConfig {
	return config.GeocodingConfig{
		BaseURL:   baseURL,
		UserAgent: "WeatherAgent/test",
		Timeout:   2000,
	}
}

func TestLookupTakesFirstCandidate(t *testing.T) {
	var gotUserAgent, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`[
			{"lat": "48.8566", "lon": "2.3522", "display_name": "Paris, France"},
			{"lat": "33.6609", "lon": "-95.5555", "display_name": "Paris, Texas"}
		]`))
	}))
	defer srv.Close()

	client := NewNominatimClient(testGeocodingConfig(srv.URL), logger.NewNoOpLogger())

	coords, err := client.Lookup(context.Background(), "Paris")
	require.NoError(t, err)

	assert.Equal(t, "WeatherAgent/test", gotUserAgent)
	assert.Equal(t, "Paris", gotQuery)
	assert.InDelta(t, 48.8566, coords.Lat, 1e-6)
	assert.InDelta(t, 2.3522, coords.Lon, 1e-6)
}

func TestLookupNoCandidatesIsLocationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewNominatimClient(testGeocodingConfig(srv.URL), logger.NewNoOpLogger())

	_, err := client.Lookup(context.Background(), "Nowhereville")
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeLocationNotFound))
}

func TestLookupMalformedCoordinatesIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat": "not-a-number", "lon": "2.3522"}]`))
	}))
	defer srv.Close()

	client := NewNominatimClient(testGeocodingConfig(srv.URL), logger.NewNoOpLogger())

	_, err := client.Lookup(context.Background(), "Paris")
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeExternalService))
}

func TestLookupTimeoutIsUpstreamTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testGeocodingConfig(srv.URL)
	cfg.Timeout = 50
	client := NewNominatimClient(cfg, logger.NewNoOpLogger())

	_, err := client.Lookup(context.Background(), "Paris")
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeUpstreamTimeout))
}
