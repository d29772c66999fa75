package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"weather-agent/internal/common/database"
	"weather-agent/internal/common/logger"
)

// CachedGeocoder caches successful lookups in redis. Cache failures degrade
// to the inner geocoder; "not found" results are not cached so transient
// misses can be retried.
type CachedGeocoder struct {
	inner  Geocoder
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedGeocoder(inner Geocoder, redis *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		inner:  inner,
		redis:  redis,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "geocode-cache"}),
	}
}

func cacheKey(place string) string {
	return "geo:" + strings.ToLower(strings.TrimSpace(place))
}

func (c *CachedGeocoder) Lookup(ctx context.Context, place string) (Coordinates, error) {
	key := cacheKey(place)

	if cached, err := c.redis.Get(ctx, key); err == nil {
		var coords Coordinates
		if err := json.Unmarshal([]byte(cached), &coords); err == nil {
			c.logger.Debug("cache hit", map[string]interface{}{"place": place})
			return coords, nil
		}
		// Unreadable entry, drop it and fall through.
		_ = c.redis.Del(ctx, key)
	}

	coords, err := c.inner.Lookup(ctx, place)
	if err != nil {
		return coords, err
	}

	if data, err := json.Marshal(coords); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{
				"place": place,
				"error": err.Error(),
			})
		}
	}

	return coords, nil
}
