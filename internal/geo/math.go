package geo

import "math"

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// LngLatToWorld projects a coordinate onto the unit Web Mercator square.
//
// x grows eastwards from 0 (lon -180) to 1 (lon 180), y grows southwards
// from 0 (lat MaxLat) to 1 (lat -MaxLat). Latitudes beyond MaxLat are clamped.
func LngLatToWorld(c Coordinate) (x, y float64) {
	lat := math.Max(-MaxLat, math.Min(MaxLat, c.Lat))

	x = (c.Lng + 180.0) / 360.0

	latRad := lat * (math.Pi / 180.0)
	mercatorY := math.Log(math.Tan(math.Pi*0.25 + latRad*0.5))
	y = 0.5 - mercatorY/(2.0*math.Pi)

	return x, y
}

// WorldToLngLat is the inverse of LngLatToWorld.
func WorldToLngLat(x, y float64) Coordinate {
	lon := x*360.0 - 180.0

	// y: [0..1] -> mercatorY: [PI..-PI]
	mercatorY := (0.5 - y) * 2.0 * math.Pi

	// Inverse Mercator projection
	latRad := (2.0 * math.Atan(math.Exp(mercatorY))) - (math.Pi * 0.5)
	lat := latRad * (180.0 / math.Pi)

	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	return Coordinate{Lng: lon, Lat: lat}
}
