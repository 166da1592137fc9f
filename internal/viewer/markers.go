package viewer

import (
	"fmt"

	"github.com/woozymasta/routeview/internal/geo"
)

// MarkerKind identifies one of the two route endpoints.
type MarkerKind string

const (
	// Pickup is the route origin.
	Pickup MarkerKind = "pickup"
	// Dropoff is the route destination.
	Dropoff MarkerKind = "dropoff"
)

// MarkerKinds lists the endpoints in attach order.
var MarkerKinds = []MarkerKind{Pickup, Dropoff}

// Label is the popup title of the marker.
func (k MarkerKind) Label() string {
	if k == Dropoff {
		return "To"
	}
	return "From"
}

// MarkerStore holds the current pickup and drop-off positions.
// Both are always defined. It is not safe for concurrent use.
type MarkerStore struct {
	pickup  geo.Coordinate
	dropoff geo.Coordinate
}

// NewMarkerStore creates a store with the initial positions.
func NewMarkerStore(pickup, dropoff geo.Coordinate) *MarkerStore {
	return &MarkerStore{pickup: pickup, dropoff: dropoff}
}

// SetPickup replaces the pickup position. Invalid coordinates are rejected
// and the previous position is kept.
func (s *MarkerStore) SetPickup(c geo.Coordinate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.pickup = c
	return nil
}

// SetDropoff replaces the drop-off position. Invalid coordinates are rejected
// and the previous position is kept.
func (s *MarkerStore) SetDropoff(c geo.Coordinate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.dropoff = c
	return nil
}

// Set dispatches to SetPickup or SetDropoff.
func (s *MarkerStore) Set(kind MarkerKind, c geo.Coordinate) error {
	switch kind {
	case Pickup:
		return s.SetPickup(c)
	case Dropoff:
		return s.SetDropoff(c)
	default:
		return fmt.Errorf("unknown marker %q", kind)
	}
}

// Get returns the position of the marker.
func (s *MarkerStore) Get(kind MarkerKind) geo.Coordinate {
	if kind == Dropoff {
		return s.dropoff
	}
	return s.pickup
}

// Pickup returns the last accepted pickup position.
func (s *MarkerStore) Pickup() geo.Coordinate { return s.pickup }

// Dropoff returns the last accepted drop-off position.
func (s *MarkerStore) Dropoff() geo.Coordinate { return s.dropoff }
