package viewer

import (
	"errors"

	"github.com/woozymasta/routeview/internal/geo"
)

var (
	// ErrMapInit means the map could not be created. The view stays without a map
	// until the next style switch.
	ErrMapInit = errors.New("map initialization failed")
	// ErrRouteUnavailable is reported when no route could be computed.
	ErrRouteUnavailable = errors.New("route unavailable")
	// ErrInvalidCoordinate is returned for out-of-range marker positions.
	ErrInvalidCoordinate = geo.ErrInvalidCoordinate
	// ErrUnknownStyle is returned for style identifiers missing from the configuration.
	ErrUnknownStyle = errors.New("unknown map style")
	// ErrNotMounted is returned by operations on a view that is not mounted.
	ErrNotMounted = errors.New("view is not mounted")
)
