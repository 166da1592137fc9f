package directions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/routeview/internal/geo"
)

func countingRouter(calls *atomic.Int32, route *Route, err error) Router {
	return RouterFunc(func(context.Context, geo.Coordinate, geo.Coordinate) (*Route, error) {
		calls.Add(1)
		return route, err
	})
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func TestCacheStoresRoutes(t *testing.T) {
	mr, rdb := newRedis(t)

	var calls atomic.Int32
	want := &Route{
		Geometry:        orb.LineString{pickup.Point(), dropoff.Point()},
		DistanceMeters:  20486.4,
		DurationSeconds: 1234.5,
	}
	c := NewCache(countingRouter(&calls, want, nil), rdb, time.Minute, "test:")

	got, err := c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), calls.Load())

	key := c.Key(pickup, dropoff)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	_, err = c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheKey(t *testing.T) {
	_, rdb := newRedis(t)
	c := NewCache(nil, rdb, time.Minute, "")

	key := c.Key(pickup, dropoff)
	assert.Regexp(t, `^routeview:route:[0-9a-z]{10}:[0-9a-z]{10}$`, key)
	assert.NotEqual(t, key, c.Key(dropoff, pickup))
}

func TestCacheSkipsErrors(t *testing.T) {
	mr, rdb := newRedis(t)

	var calls atomic.Int32
	c := NewCache(countingRouter(&calls, nil, ErrNoRoute), rdb, time.Minute, "test:")

	for rangeIdx := 0; rangeIdx < 2; rangeIdx++ {
		_, err := c.Route(context.Background(), pickup, dropoff)
		assert.ErrorIs(t, err, ErrNoRoute)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, mr.Exists(c.Key(pickup, dropoff)))
}

func TestCacheBypassesRedisFailure(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	want := &Route{DistanceMeters: 1000, DurationSeconds: 60}
	c := NewCache(countingRouter(&calls, want, nil), rdb, time.Minute, "test:")

	got, err := c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheDropsCorruptedEntry(t *testing.T) {
	mr, rdb := newRedis(t)

	var calls atomic.Int32
	want := &Route{DistanceMeters: 1000, DurationSeconds: 60}
	c := NewCache(countingRouter(&calls, want, nil), rdb, time.Minute, "test:")
	require.NoError(t, mr.Set(c.Key(pickup, dropoff), "{not json"))

	got, err := c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoalesceSharesCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	next := RouterFunc(func(ctx context.Context, _, _ geo.Coordinate) (*Route, error) {
		calls.Add(1)
		<-release
		return &Route{DistanceMeters: 500}, nil
	})
	c := Coalesce(next)

	const n = 5
	results := make(chan *Route, n)
	for rangeIdx := 0; rangeIdx < n; rangeIdx++ {
		go func() {
			r, err := c.Route(context.Background(), pickup, dropoff)
			if err == nil {
				results <- r
			} else {
				results <- nil
			}
		}()
	}

	// Let every caller join the in-flight call.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)

	seen := make(map[*Route]bool)
	for rangeIdx := 0; rangeIdx < n; rangeIdx++ {
		r := <-results
		require.NotNil(t, r)
		assert.Equal(t, 500.0, r.DistanceMeters)
		seen[r] = true
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, seen, n, "callers must not share the same *Route")
}

func TestCoalesceCallerCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := Coalesce(RouterFunc(func(ctx context.Context, _, _ geo.Coordinate) (*Route, error) {
		<-release
		return &Route{}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Route(ctx, pickup, dropoff)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCoalesceCancelsAbandonedCall(t *testing.T) {
	upstreamDone := make(chan error, 1)
	c := Coalesce(RouterFunc(func(ctx context.Context, _, _ geo.Coordinate) (*Route, error) {
		<-ctx.Done()
		upstreamDone <- ctx.Err()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Route(ctx, pickup, dropoff)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case err := <-upstreamDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("upstream call kept running after its only caller left")
	}
}

func TestCoalesceKeepsCallForRemainingWaiters(t *testing.T) {
	release := make(chan struct{})
	var cancelled atomic.Bool
	c := Coalesce(RouterFunc(func(ctx context.Context, _, _ geo.Coordinate) (*Route, error) {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return nil, ctx.Err()
		case <-release:
			return &Route{DistanceMeters: 700}, nil
		}
	}))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Route(firstCtx, pickup, dropoff)
		firstErr <- err
	}()

	second := make(chan *Route, 1)
	go func() {
		r, _ := c.Route(context.Background(), pickup, dropoff)
		second <- r
	}()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f := c.flights["124.457715,8.596826;124.572312,8.521490"]
		return f != nil && f.waiters == 2
	}, time.Second, time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	r := <-second
	require.NotNil(t, r)
	assert.Equal(t, 700.0, r.DistanceMeters)
	assert.False(t, cancelled.Load())
}

func TestCoalesceRestartsAfterAbandonedCall(t *testing.T) {
	var calls atomic.Int32
	c := Coalesce(RouterFunc(func(ctx context.Context, _, _ geo.Coordinate) (*Route, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &Route{DistanceMeters: 900}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Route(ctx, pickup, dropoff)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	r, err := c.Route(context.Background(), pickup, dropoff)
	require.NoError(t, err)
	assert.Equal(t, 900.0, r.DistanceMeters)
	assert.Equal(t, int32(2), calls.Load())
}
