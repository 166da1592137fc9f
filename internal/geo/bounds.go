package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// TileSize is the pixel size of a vector tile at integer zoom levels.
const TileSize = 512

// Bounds is a rectangle given by its south-west and north-east corners.
// It is serialized as [[west, south], [east, north]].
type Bounds struct {
	SW Coordinate
	NE Coordinate
}

// Viewport is the pixel size of the map container.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Camera is the resulting map view of a fit operation.
type Camera struct {
	Center Coordinate `json:"center"`
	Zoom   float64    `json:"zoom"`
}

// BoundsOf returns the minimal bounds containing all points.
func BoundsOf(first Coordinate, rest ...Coordinate) Bounds {
	b := first.Point().Bound()
	for _, c := range rest {
		b = b.Extend(c.Point())
	}

	return fromBound(b)
}

func fromBound(b orb.Bound) Bounds {
	return Bounds{SW: FromPoint(b.Min), NE: FromPoint(b.Max)}
}

// Bound returns the bounds as an orb bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SW.Point(), Max: b.NE.Point()}
}

// Contains reports whether c lies inside or on the edge of b.
func (b Bounds) Contains(c Coordinate) bool {
	return b.Bound().Contains(c.Point())
}

// Extend returns bounds grown to include c.
func (b Bounds) Extend(c Coordinate) Bounds {
	return fromBound(b.Bound().Extend(c.Point()))
}

// Center returns the planar midpoint of the bounds.
func (b Bounds) Center() Coordinate {
	return FromPoint(b.Bound().Center())
}

// Validate checks both corners and their ordering.
func (b Bounds) Validate() error {
	if err := b.SW.Validate(); err != nil {
		return err
	}
	if err := b.NE.Validate(); err != nil {
		return err
	}
	if b.SW.Lng > b.NE.Lng || b.SW.Lat > b.NE.Lat {
		return fmt.Errorf("%w: south-west corner %s is not below north-east corner %s", ErrInvalidCoordinate, b.SW, b.NE)
	}

	return nil
}

// MarshalJSON encodes the bounds as [[west, south], [east, north]].
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]Coordinate{b.SW, b.NE})
}

// UnmarshalJSON decodes [[west, south], [east, north]].
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var corners []Coordinate
	if err := json.Unmarshal(data, &corners); err != nil {
		return err
	}
	if len(corners) != 2 {
		return fmt.Errorf("%w: bounds need two corners, got %d", ErrInvalidCoordinate, len(corners))
	}

	b.SW, b.NE = corners[0], corners[1]
	return nil
}

// UnmarshalYAML decodes [[west, south], [east, north]].
func (b *Bounds) UnmarshalYAML(value *yaml.Node) error {
	var corners []Coordinate
	if err := value.Decode(&corners); err != nil {
		return err
	}
	if len(corners) != 2 {
		return fmt.Errorf("%w: line %d: bounds need two corners, got %d", ErrInvalidCoordinate, value.Line, len(corners))
	}

	b.SW, b.NE = corners[0], corners[1]
	return nil
}

// CameraForBounds computes the camera a map settles on when fitting b into
// a viewport with the given padding on every side. The zoom never exceeds
// maxZoom and never drops below 0. Bounds without extent resolve to maxZoom.
func CameraForBounds(b Bounds, vp Viewport, padding, maxZoom float64) Camera {
	x0, y0 := LngLatToWorld(Coordinate{Lng: b.SW.Lng, Lat: b.NE.Lat})
	x1, y1 := LngLatToWorld(Coordinate{Lng: b.NE.Lng, Lat: b.SW.Lat})

	availW := math.Max(float64(vp.Width)-2*padding, 1)
	availH := math.Max(float64(vp.Height)-2*padding, 1)

	zoom := math.Inf(1)
	if dx := x1 - x0; dx > 0 {
		zoom = math.Min(zoom, math.Log2(availW/(dx*TileSize)))
	}
	if dy := y1 - y0; dy > 0 {
		zoom = math.Min(zoom, math.Log2(availH/(dy*TileSize)))
	}

	zoom = math.Max(0, math.Min(zoom, maxZoom))

	return Camera{
		Center: WorldToLngLat((x0+x1)/2, (y0+y1)/2),
		Zoom:   zoom,
	}
}
