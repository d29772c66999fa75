package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-agent/internal/common/database"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/logger"
)

// countingGeocoder records how often the inner lookup runs.
type countingGeocoder struct {
	coords Coordinates
	err    error
	calls  int
}

func (g *countingGeocoder) Lookup(ctx context.Context, place string) (Coordinates, error) {
	g.calls++
	if g.err != nil {
		return Coordinates{}, g.err
	}
	return g.coords, nil
}

func newMiniredisClient(t *testing.T) *database.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	return &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestCachedLookupHitsSkipInner(t *testing.T) {
	inner := &countingGeocoder{coords: Coordinates{Lat: 48.85, Lon: 2.35}}
	cached := NewCachedGeocoder(inner, newMiniredisClient(t), time.Minute, logger.NewNoOpLogger())

	first, err := cached.Lookup(context.Background(), "Paris")
	require.NoError(t, err)

	second, err := cached.Lookup(context.Background(), "paris ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second lookup must come from cache")
}

func TestCachedLookupDoesNotCacheNotFound(t *testing.T) {
	inner := &countingGeocoder{err: commonerrors.NewLocationNotFoundError("Nowhereville")}
	cached := NewCachedGeocoder(inner, newMiniredisClient(t), time.Minute, logger.NewNoOpLogger())

	_, err := cached.Lookup(context.Background(), "Nowhereville")
	require.Error(t, err)

	_, err = cached.Lookup(context.Background(), "Nowhereville")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "failed lookups must not be cached")
}

func TestCachedLookupFallsThroughOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("geo:paris").SetErr(errors.New("connection refused"))
	mock.Regexp().ExpectSet("geo:paris", `.*`, time.Minute).SetErr(errors.New("connection refused"))

	inner := &countingGeocoder{coords: Coordinates{Lat: 48.85, Lon: 2.35}}
	cached := NewCachedGeocoder(inner, &database.RedisClient{Client: db}, time.Minute, logger.NewNoOpLogger())

	coords, err := cached.Lookup(context.Background(), "Paris")
	require.NoError(t, err)
	assert.InDelta(t, 48.85, coords.Lat, 1e-6)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedLookupDropsCorruptEntries(t *testing.T) {
	rc := newMiniredisClient(t)
	require.NoError(t, rc.Set(context.Background(), "geo:paris", "not-json", time.Minute))

	inner := &countingGeocoder{coords: Coordinates{Lat: 48.85, Lon: 2.35}}
	cached := NewCachedGeocoder(inner, rc, time.Minute, logger.NewNoOpLogger())

	coords, err := cached.Lookup(context.Background(), "Paris")
	require.NoError(t, err)
	assert.InDelta(t, 48.85, coords.Lat, 1e-6)
	assert.Equal(t, 1, inner.calls)
}
