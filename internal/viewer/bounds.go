package viewer

import "github.com/woozymasta/routeview/internal/geo"

// BoundsFitter frames both markers in the map viewport.
type BoundsFitter struct {
	// Fallback is used while the map has not reported its size.
	Fallback geo.Viewport
	Padding  float64
	MaxZoom  float64
}

// Fit asks the map to animate to the minimal bounds containing a and b and
// returns the camera the map settles on. Calling it twice with the same pair
// yields the same camera.
func (f BoundsFitter) Fit(m Map, a, b geo.Coordinate) (geo.Bounds, geo.Camera) {
	bounds := geo.BoundsOf(a, b)

	m.FitBounds(bounds, FitOptions{
		Padding: f.Padding,
		MaxZoom: f.MaxZoom,
		Animate: true,
	})

	vp := m.Size()
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = f.Fallback
	}

	return bounds, geo.CameraForBounds(bounds, vp, f.Padding, f.MaxZoom)
}
