package viewer

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/geo"
)

// ControlKind names a map control.
type ControlKind string

// ControlNavigation is the zoom/rotate button group.
const ControlNavigation ControlKind = "navigation"

// MapOptions are the construction parameters of a map instance.
type MapOptions struct {
	MaxBounds   *geo.Bounds
	Style       config.Style
	AccessToken string
	Center      geo.Coordinate
	Zoom        float64
}

// FitOptions controls a fit-to-bounds camera move.
type FitOptions struct {
	Padding float64 `json:"padding"`
	MaxZoom float64 `json:"maxZoom"`
	Animate bool    `json:"animate"`
}

// MarkerOptions are the construction parameters of a marker.
type MarkerOptions struct {
	Color     string
	PopupHTML string
	Position  geo.Coordinate
	Draggable bool
}

// MapFactory constructs map instances.
type MapFactory interface {
	NewMap(ctx context.Context, opts MapOptions) (Map, error)
}

// Map is a single rendered map instance. After Remove the handle is dead.
type Map interface {
	AddControl(kind ControlKind) error
	OnMove(fn func(center geo.Coordinate, zoom float64))
	FitBounds(bounds geo.Bounds, opts FitOptions)
	AddMarker(opts MarkerOptions) (Marker, error)
	AddOverlay(fc *geojson.FeatureCollection) (Overlay, error)
	Size() geo.Viewport
	Remove()
}

// Marker is a marker attached to a map.
type Marker interface {
	SetLngLat(c geo.Coordinate)
	SetPopup(html string)
	OnDragEnd(fn func(c geo.Coordinate))
	LngLat() geo.Coordinate
}

// Overlay is a route layer attached to a map.
type Overlay interface {
	Remove()
}
