package directions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/internal/config"
)

// FromConfig builds the router chain used by the viewer: the service client,
// an optional Redis cache in front of it and request coalescing on top.
// The returned close function releases the Redis connection, if any.
func FromConfig(ctx context.Context, cfg config.Directions, cache config.Cache, accessToken string) (Router, func() error, error) {
	opts := Options{
		Provider:  Provider(cfg.Provider),
		BaseURL:   cfg.BaseURL,
		Profile:   cfg.Profile,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	}
	if opts.Provider == ProviderMapbox {
		if accessToken == "" {
			return nil, nil, fmt.Errorf("directions provider %q needs an access token", cfg.Provider)
		}
		opts.AccessToken = accessToken
	}

	client := NewClient(opts)
	log.Info().
		Str("profile", client.Profile()).
		Float64("rate_limit", cfg.RateLimit).
		Msg("Directions client configured")

	closer := func() error { return nil }
	var router Router = client

	if cache.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cache.redis_url: %w", err)
		}

		rdb := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		router = NewCache(client, rdb, cache.TTL, cache.Prefix+client.Profile()+":")
		closer = rdb.Close

		log.Info().
			Str("addr", redisOpts.Addr).
			Dur("ttl", cache.TTL).
			Msg("Route cache enabled")
	}

	return Coalesce(router), closer, nil
}
