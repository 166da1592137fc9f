package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/geo"
	"github.com/woozymasta/routeview/internal/units"
)

// RouteStatus is the display status of the route panel.
type RouteStatus string

const (
	RouteIdle        RouteStatus = "idle"
	RoutePending     RouteStatus = "pending"
	RouteReady       RouteStatus = "ready"
	RouteUnavailable RouteStatus = "unavailable"
)

// RouteSummary is the distance and duration shown to the user.
type RouteSummary struct {
	DistanceKm  units.Kilometers `json:"distance_km" yaml:"distance_km"`
	DurationMin units.Minutes    `json:"duration_min" yaml:"duration_min"`
}

// NewRouteSummary converts raw service values.
func NewRouteSummary(distanceMeters, durationSeconds float64) RouteSummary {
	return RouteSummary{
		DistanceKm:  units.MetersToKm(distanceMeters),
		DurationMin: units.SecondsToMin(durationSeconds),
	}
}

// RouteState is the route part of the view state.
type RouteState struct {
	Summary     *RouteSummary  `json:"summary,omitempty"`
	Status      RouteStatus    `json:"status"`
	Error       string         `json:"error,omitempty"`
	Origin      geo.Coordinate `json:"origin"`
	Destination geo.Coordinate `json:"destination"`
}

// RouteRequester issues route requests and applies only the latest response.
//
// Every request carries a sequence token; responses whose token is not the
// latest issued one are discarded. The requester owns at most one overlay
// and releases it before a new one is attached.
//
// Methods other than Wait must be called with the owning view's lock held.
type RouteRequester struct {
	router  directions.Router
	cancel  context.CancelFunc
	overlay Overlay
	log     zerolog.Logger
	state   RouteState
	wg      sync.WaitGroup
	seq     uint64
	issued  uint64
}

// NewRouteRequester creates a requester on top of router.
func NewRouteRequester(router directions.Router, log zerolog.Logger) *RouteRequester {
	return &RouteRequester{
		router: router,
		log:    log,
		state:  RouteState{Status: RouteIdle},
	}
}

// Begin issues a request from origin to destination on its own goroutine and
// returns its token. The previous request is cancelled and its overlay released.
// done is called from that goroutine with the token and the outcome.
func (r *RouteRequester) Begin(
	parent context.Context,
	origin, destination geo.Coordinate,
	done func(token uint64, route *directions.Route, err error),
) uint64 {
	r.Cancel()
	token := r.seq
	r.issued++

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.state = RouteState{
		Status:      RoutePending,
		Origin:      origin,
		Destination: destination,
	}

	r.log.Debug().
		Uint64("token", token).
		Stringer("origin", origin).
		Stringer("destination", destination).
		Msg("Route requested")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		route, err := r.router.Route(ctx, origin, destination)
		done(token, route, err)
	}()

	return token
}

// Apply stores the outcome of request token and draws it on m.
// It returns false and changes nothing when token is stale.
func (r *RouteRequester) Apply(m Map, token uint64, route *directions.Route, err error) bool {
	if token != r.seq || r.state.Status != RoutePending {
		return false
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	if err == nil && route == nil {
		err = directions.ErrNoRoute
	}
	if err != nil {
		reason := "route request failed"
		if errors.Is(err, directions.ErrNoRoute) {
			reason = "no route found"
		}
		r.log.Warn().Err(err).Uint64("token", token).Msg("Route unavailable")

		r.state.Status = RouteUnavailable
		r.state.Summary = nil
		r.state.Error = reason
		return true
	}

	summary := NewRouteSummary(route.DistanceMeters, route.DurationSeconds)
	r.state.Status = RouteReady
	r.state.Summary = &summary
	r.state.Error = ""

	r.releaseOverlay()
	if m != nil {
		fc := geo.RouteFeatureCollection(route.Geometry, r.state.Origin, r.state.Destination, geojson.Properties{
			"distance_km":  float64(summary.DistanceKm),
			"duration_min": int64(summary.DurationMin),
		})
		overlay, err := m.AddOverlay(fc)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to draw route overlay")
		} else {
			r.overlay = overlay
		}
	}

	r.log.Debug().
		Uint64("token", token).
		Stringer("distance_km", summary.DistanceKm).
		Stringer("duration_min", summary.DurationMin).
		Msg("Route applied")

	return true
}

// Cancel invalidates the in-flight request, if any, and releases the overlay.
func (r *RouteRequester) Cancel() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.seq++
	if r.state.Status == RoutePending {
		r.state.Status = RouteIdle
	}
	r.releaseOverlay()
}

// State returns the current route state.
func (r *RouteRequester) State() RouteState {
	st := r.state
	if st.Summary != nil {
		summary := *st.Summary
		st.Summary = &summary
	}
	return st
}

// Issued returns how many requests were started.
func (r *RouteRequester) Issued() uint64 {
	return r.issued
}

// Wait blocks until all started requests have returned. It must not be
// called with the view lock held.
func (r *RouteRequester) Wait() {
	r.wg.Wait()
}

func (r *RouteRequester) releaseOverlay() {
	if r.overlay != nil {
		r.overlay.Remove()
		r.overlay = nil
	}
}
