package directions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/internal/geo"
)

// geohashPrecision of 10 characters is roughly a 1 m cell.
const geohashPrecision = 10

// Cache stores successful routes in Redis.
type Cache struct {
	next   Router
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewCache wraps next with a Redis-backed route cache.
// Keys are built from prefix and the geohashes of both endpoints.
func NewCache(next Router, rdb redis.Cmdable, ttl time.Duration, prefix string) *Cache {
	if prefix == "" {
		prefix = "routeview:route:"
	}

	return &Cache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Key returns the cache key for a pair of coordinates.
func (c *Cache) Key(origin, destination geo.Coordinate) string {
	return c.prefix +
		geohash.EncodeWithPrecision(origin.Lat, origin.Lng, geohashPrecision) + ":" +
		geohash.EncodeWithPrecision(destination.Lat, destination.Lng, geohashPrecision)
}

// Route implements Router. Redis failures are logged and bypassed.
func (c *Cache) Route(ctx context.Context, origin, destination geo.Coordinate) (*Route, error) {
	key := c.Key(origin, destination)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var route Route
		jsonErr := json.Unmarshal(data, &route)
		if jsonErr == nil {
			log.Trace().Str("key", key).Msg("Route cache hit")
			return &route, nil
		}
		log.Warn().Err(jsonErr).Str("key", key).Msg("Dropping corrupted cached route")
	case errors.Is(err, redis.Nil):
		log.Trace().Str("key", key).Msg("Route cache miss")
	default:
		log.Warn().Err(err).Str("key", key).Msg("Route cache read failed")
	}

	route, err := c.next.Route(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(route)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode route for cache")
		return route, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Route cache write failed")
	}

	return route, nil
}
