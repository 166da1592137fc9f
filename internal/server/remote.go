package server

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/woozymasta/routeview/internal/geo"
	"github.com/woozymasta/routeview/internal/viewer"
)

// remoteFactory creates maps rendered by the browser on the other end of a session.
type remoteFactory struct {
	s       *session
	timeout time.Duration
}

// NewMap asks the browser to create a map and waits for its answer.
// A rejected or unanswered request is a map initialization failure.
func (f *remoteFactory) NewMap(ctx context.Context, opts viewer.MapOptions) (viewer.Map, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	id := f.s.newID("map")
	r, err := f.s.call(ctx, command{
		Op:     opMapCreate,
		Target: id,
		Args: mapCreateArgs{
			Style:       opts.Style.URL,
			Center:      opts.Center,
			Zoom:        opts.Zoom,
			MaxBounds:   opts.MaxBounds,
			AccessToken: opts.AccessToken,
		},
	})
	if err != nil {
		return nil, err
	}

	m := &remoteMap{s: f.s, id: id, size: r.Viewport}
	f.s.register(id, m)

	return m, nil
}

type remoteMap struct {
	s       *session
	onMove  func(center geo.Coordinate, zoom float64)
	id      string
	owned   []string
	size    geo.Viewport
	mu      sync.Mutex
	removed bool
}

func (m *remoteMap) AddControl(kind viewer.ControlKind) error {
	return m.s.send(command{Op: opMapAddControl, Target: m.id, Args: controlArgs{Kind: kind}})
}

func (m *remoteMap) OnMove(fn func(center geo.Coordinate, zoom float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMove = fn
}

func (m *remoteMap) FitBounds(bounds geo.Bounds, opts viewer.FitOptions) {
	m.s.sendLogged(command{
		Op:     opMapFitBounds,
		Target: m.id,
		Args:   fitBoundsArgs{Bounds: bounds, Options: opts},
	})
}

func (m *remoteMap) AddMarker(opts viewer.MarkerOptions) (viewer.Marker, error) {
	id := m.s.newID("marker")
	err := m.s.send(command{
		Op:     opMarkerAdd,
		Target: id,
		Args: markerAddArgs{
			Map:       m.id,
			LngLat:    opts.Position,
			Draggable: opts.Draggable,
			Color:     opts.Color,
			Popup:     opts.PopupHTML,
		},
	})
	if err != nil {
		return nil, err
	}

	mk := &remoteMarker{s: m.s, id: id, pos: opts.Position}
	m.own(id)
	m.s.register(id, mk)

	return mk, nil
}

func (m *remoteMap) AddOverlay(fc *geojson.FeatureCollection) (viewer.Overlay, error) {
	id := m.s.newID("route")
	err := m.s.send(command{
		Op:     opOverlayAdd,
		Target: id,
		Args:   overlayAddArgs{Map: m.id, Data: fc},
	})
	if err != nil {
		return nil, err
	}

	return &remoteOverlay{s: m.s, id: id}, nil
}

func (m *remoteMap) Size() geo.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Remove destroys the browser map and stops event delivery for it and its markers.
func (m *remoteMap) Remove() {
	m.mu.Lock()
	if m.removed {
		m.mu.Unlock()
		return
	}
	m.removed = true
	owned := m.owned
	m.owned = nil
	m.onMove = nil
	m.mu.Unlock()

	m.s.unregister(append(owned, m.id)...)
	m.s.sendLogged(command{Op: opMapRemove, Target: m.id})
}

func (m *remoteMap) own(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned = append(m.owned, id)
}

// resized records the container size reported with camera events.
func (m *remoteMap) resized(vp geo.Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = vp
}

func (m *remoteMap) moved(center geo.Coordinate, zoom float64) {
	m.mu.Lock()
	fn := m.onMove
	m.mu.Unlock()

	if fn != nil {
		fn(center, zoom)
	}
}

type remoteMarker struct {
	s         *session
	onDragEnd func(c geo.Coordinate)
	id        string
	pos       geo.Coordinate
	mu        sync.Mutex
}

func (mk *remoteMarker) SetLngLat(c geo.Coordinate) {
	mk.mu.Lock()
	mk.pos = c
	mk.mu.Unlock()

	mk.s.sendLogged(command{Op: opMarkerSetLngLat, Target: mk.id, Args: lngLatArgs{LngLat: c}})
}

func (mk *remoteMarker) SetPopup(html string) {
	mk.s.sendLogged(command{Op: opMarkerSetPopup, Target: mk.id, Args: popupArgs{HTML: html}})
}

func (mk *remoteMarker) OnDragEnd(fn func(c geo.Coordinate)) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.onDragEnd = fn
}

func (mk *remoteMarker) LngLat() geo.Coordinate {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.pos
}

func (mk *remoteMarker) dragged(c geo.Coordinate) {
	mk.mu.Lock()
	mk.pos = c
	fn := mk.onDragEnd
	mk.mu.Unlock()

	if fn != nil {
		fn(c)
	}
}

type remoteOverlay struct {
	s    *session
	id   string
	once sync.Once
}

func (o *remoteOverlay) Remove() {
	o.once.Do(func() {
		o.s.sendLogged(command{Op: opOverlayRemove, Target: o.id})
	})
}
