// Package geo handles geographic data structures and coordinate conversions.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCoordinate is returned for longitude/latitude values outside the WGS84 range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 position. It is serialized as [lng, lat].
type Coordinate struct {
	Lng float64 `validate:"gte=-180,lte=180"`
	Lat float64 `validate:"gte=-90,lte=90"`
}

// LngLat builds a Coordinate from longitude and latitude.
func LngLat(lng, lat float64) Coordinate {
	return Coordinate{Lng: lng, Lat: lat}
}

// FromPoint converts an orb point ([lng, lat]) into a Coordinate.
func FromPoint(p orb.Point) Coordinate {
	return Coordinate{Lng: p.Lon(), Lat: p.Lat()}
}

// Point returns the coordinate as an orb point.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Validate reports whether both components are finite and inside the WGS84 range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, c.Lng)
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}

	return nil
}

// String renders the coordinate the way the readout panel shows it.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lng, c.Lat)
}

// MarshalJSON encodes the coordinate as [lng, lat].
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lng, c.Lat})
}

// UnmarshalJSON decodes a [lng, lat] pair. Range checks are left to Validate.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected [lng, lat], got %d values", ErrInvalidCoordinate, len(pair))
	}

	c.Lng, c.Lat = pair[0], pair[1]
	return nil
}

// MarshalYAML encodes the coordinate as a flow sequence [lng, lat].
func (c Coordinate) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []float64{c.Lng, c.Lat} {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!float",
			Value: fmt.Sprintf("%g", v),
		})
	}

	return node, nil
}

// UnmarshalYAML decodes a [lng, lat] sequence.
func (c *Coordinate) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: line %d: expected [lng, lat], got %d values", ErrInvalidCoordinate, value.Line, len(pair))
	}

	c.Lng, c.Lat = pair[0], pair[1]
	return nil
}
