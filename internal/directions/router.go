// Package directions computes driving routes between two coordinates using
// an external OSRM-compatible routing service.
package directions

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/woozymasta/routeview/internal/geo"
)

var (
	// ErrNoRoute means the service answered but found no route between the points.
	ErrNoRoute = errors.New("no route found")
	// ErrUnavailable means the service could not be reached or answered with an error.
	ErrUnavailable = errors.New("directions service unavailable")
)

// Route is the first route returned by the service.
type Route struct {
	Geometry        orb.LineString `json:"geometry,omitempty"`
	DistanceMeters  float64        `json:"distance_m"`
	DurationSeconds float64        `json:"duration_s"`
}

// Router computes a route between two coordinates.
type Router interface {
	Route(ctx context.Context, origin, destination geo.Coordinate) (*Route, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(ctx context.Context, origin, destination geo.Coordinate) (*Route, error)

// Route calls f(ctx, origin, destination).
func (f RouterFunc) Route(ctx context.Context, origin, destination geo.Coordinate) (*Route, error) {
	return f(ctx, origin, destination)
}
