package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteFeatureCollection wraps a route line into a GeoJSON collection the
// map can draw as an overlay. Routes without geometry fall back to a
// straight line between the endpoints.
func RouteFeatureCollection(line orb.LineString, origin, destination Coordinate, props geojson.Properties) *geojson.FeatureCollection {
	if len(line) < 2 {
		line = orb.LineString{origin.Point(), destination.Point()}
	}

	route := geojson.NewFeature(line)
	route.Properties = geojson.Properties{"kind": "route"}
	for k, v := range props {
		route.Properties[k] = v
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(route)

	return fc
}
