package viewer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/geo"
)

func TestMarkerStore(t *testing.T) {
	a, b := geo.LngLat(1, 2), geo.LngLat(3, 4)
	s := NewMarkerStore(a, b)

	assert.Equal(t, a, s.Get(Pickup))
	assert.Equal(t, b, s.Get(Dropoff))

	require.NoError(t, s.SetPickup(geo.LngLat(5, 6)))
	assert.Equal(t, geo.LngLat(5, 6), s.Pickup())

	assert.ErrorIs(t, s.SetDropoff(geo.LngLat(181, 0)), ErrInvalidCoordinate)
	assert.Equal(t, b, s.Dropoff())

	assert.Error(t, s.Set(MarkerKind("waypoint"), a))
	assert.Equal(t, "From", Pickup.Label())
	assert.Equal(t, "To", Dropoff.Label())
}

func TestStyleSwitcher(t *testing.T) {
	cfg := config.Default()
	s := NewStyleSwitcher(cfg.Styles, cfg.DefaultStyle)

	assert.Equal(t, config.StyleStreet, s.Active())

	style, err := s.Resolve(config.StyleSatellite)
	require.NoError(t, err)
	assert.Equal(t, "mapbox://styles/mapbox/satellite-streets-v12", style.URL)
	assert.Equal(t, config.StyleStreet, s.Active(), "resolve does not switch")

	_, err = s.Resolve("terrain")
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestBoundsFitterFallbackViewport(t *testing.T) {
	m := &fakeMap{}
	f := BoundsFitter{Padding: 50, MaxZoom: 11, Fallback: geo.Viewport{Width: 1280, Height: 800}}
	a, b := geo.LngLat(124.45, 8.59), geo.LngLat(124.57, 8.52)

	bounds, cam := f.Fit(m, a, b)

	assert.Equal(t, geo.BoundsOf(a, b), bounds)
	assert.Equal(t, geo.CameraForBounds(bounds, f.Fallback, 50, 11), cam)

	_, again := f.Fit(m, a, b)
	assert.Equal(t, cam, again)
	assert.Len(t, m.fitCalls(), 2)
}

func TestRouteRequesterDiscardsStaleToken(t *testing.T) {
	r := NewRouteRequester(&fakeRouter{route: sampleRoute}, zerolog.Nop())
	m := &fakeMap{}

	a, b := geo.LngLat(1, 2), geo.LngLat(3, 4)
	done := func(uint64, *directions.Route, error) {}

	t1 := r.Begin(context.Background(), a, b, done)
	t2 := r.Begin(context.Background(), a, b, done)
	r.Wait()
	assert.NotEqual(t, t1, t2)
	assert.Equal(t, uint64(2), r.Issued())

	assert.False(t, r.Apply(m, t1, sampleRoute, nil))
	assert.Equal(t, RoutePending, r.State().Status)

	assert.True(t, r.Apply(m, t2, sampleRoute, nil))
	assert.Equal(t, RouteReady, r.State().Status)
	assert.Equal(t, 1, m.liveOverlays())

	// a second delivery for the same token changes nothing
	assert.False(t, r.Apply(m, t2, &directions.Route{DistanceMeters: 1}, nil))
	assert.Equal(t, "20.5", r.State().Summary.DistanceKm.String())

	r.Cancel()
	assert.Equal(t, 0, m.liveOverlays())
	assert.Equal(t, RouteReady, r.State().Status)
}

func TestRouteRequesterCancelResetsPending(t *testing.T) {
	r := NewRouteRequester(&fakeRouter{route: sampleRoute}, zerolog.Nop())

	token := r.Begin(context.Background(), geo.LngLat(1, 2), geo.LngLat(3, 4), func(uint64, *directions.Route, error) {})
	r.Wait()
	r.Cancel()

	assert.Equal(t, RouteIdle, r.State().Status)
	assert.False(t, r.Apply(nil, token, sampleRoute, nil))
}

func TestRouteRequesterNilRouteIsNoRoute(t *testing.T) {
	r := NewRouteRequester(&fakeRouter{}, zerolog.Nop())

	token := r.Begin(context.Background(), geo.LngLat(1, 2), geo.LngLat(3, 4), func(uint64, *directions.Route, error) {})
	r.Wait()

	require.True(t, r.Apply(nil, token, nil, nil))
	assert.Equal(t, RouteUnavailable, r.State().Status)
	assert.Equal(t, "no route found", r.State().Error)
}

func TestRouteStateIsCopied(t *testing.T) {
	r := NewRouteRequester(&fakeRouter{}, zerolog.Nop())
	token := r.Begin(context.Background(), geo.LngLat(1, 2), geo.LngLat(3, 4), func(uint64, *directions.Route, error) {})
	r.Wait()
	require.True(t, r.Apply(nil, token, sampleRoute, nil))

	st := r.State()
	st.Summary.DistanceKm = 999
	assert.Equal(t, "20.5", r.State().Summary.DistanceKm.String())
}
