package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/geo"
)

type fakeFactory struct {
	fail error
	maps []*fakeMap
	opts []MapOptions
	mu   sync.Mutex
}

func (f *fakeFactory) NewMap(_ context.Context, opts MapOptions) (Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opts = append(f.opts, opts)
	if f.fail != nil {
		return nil, f.fail
	}

	m := &fakeMap{size: geo.Viewport{Width: 1024, Height: 768}}
	f.maps = append(f.maps, m)
	return m, nil
}

func (f *fakeFactory) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.maps)
}

func (f *fakeFactory) mapAt(i int) *fakeMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maps[i]
}

func (f *fakeFactory) last() *fakeMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maps[len(f.maps)-1]
}

func (f *fakeFactory) liveOverlays() int {
	f.mu.Lock()
	maps := append([]*fakeMap(nil), f.maps...)
	f.mu.Unlock()

	n := 0
	for _, m := range maps {
		n += m.liveOverlays()
	}
	return n
}

type fit struct {
	bounds geo.Bounds
	opts   FitOptions
}

type fakeMap struct {
	onMove   func(center geo.Coordinate, zoom float64)
	controls []ControlKind
	fits     []fit
	markers  []*fakeMarker
	overlays []*fakeOverlay
	size     geo.Viewport
	mu       sync.Mutex
	removed  bool
}

func (m *fakeMap) AddControl(kind ControlKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, kind)
	return nil
}

func (m *fakeMap) OnMove(fn func(center geo.Coordinate, zoom float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMove = fn
}

func (m *fakeMap) FitBounds(bounds geo.Bounds, opts FitOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fits = append(m.fits, fit{bounds: bounds, opts: opts})
}

func (m *fakeMap) AddMarker(opts MarkerOptions) (Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := &fakeMarker{opts: opts, pos: opts.Position, popup: opts.PopupHTML}
	m.markers = append(m.markers, mk)
	return mk, nil
}

func (m *fakeMap) AddOverlay(fc *geojson.FeatureCollection) (Overlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &fakeOverlay{fc: fc}
	m.overlays = append(m.overlays, o)
	return o, nil
}

func (m *fakeMap) Size() geo.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *fakeMap) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = true
}

func (m *fakeMap) isRemoved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

func (m *fakeMap) marker(i int) *fakeMarker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[i]
}

func (m *fakeMap) markerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

func (m *fakeMap) fitCalls() []fit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fit(nil), m.fits...)
}

func (m *fakeMap) liveOverlays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.overlays {
		if !o.isRemoved() {
			n++
		}
	}
	return n
}

func (m *fakeMap) lastOverlay() *fakeOverlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.overlays) == 0 {
		return nil
	}
	return m.overlays[len(m.overlays)-1]
}

func (m *fakeMap) move(center geo.Coordinate, zoom float64) {
	m.mu.Lock()
	fn := m.onMove
	m.mu.Unlock()
	fn(center, zoom)
}

type fakeMarker struct {
	onDrag func(c geo.Coordinate)
	popup  string
	opts   MarkerOptions
	sets   []geo.Coordinate
	pos    geo.Coordinate
	mu     sync.Mutex
}

func (mk *fakeMarker) SetLngLat(c geo.Coordinate) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.pos = c
	mk.sets = append(mk.sets, c)
}

func (mk *fakeMarker) SetPopup(html string) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.popup = html
}

func (mk *fakeMarker) OnDragEnd(fn func(c geo.Coordinate)) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.onDrag = fn
}

func (mk *fakeMarker) LngLat() geo.Coordinate {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.pos
}

// drag moves the marker like a user would and fires the drag-end handler.
func (mk *fakeMarker) drag(c geo.Coordinate) {
	mk.mu.Lock()
	mk.pos = c
	fn := mk.onDrag
	mk.mu.Unlock()
	fn(c)
}

func (mk *fakeMarker) snapBacks() []geo.Coordinate {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return append([]geo.Coordinate(nil), mk.sets...)
}

type fakeOverlay struct {
	fc      *geojson.FeatureCollection
	mu      sync.Mutex
	removed bool
}

func (o *fakeOverlay) Remove() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = true
}

func (o *fakeOverlay) isRemoved() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.removed
}

type routeCall struct {
	origin      geo.Coordinate
	destination geo.Coordinate
}

// fakeRouter answers immediately with route/err, or waits for a reply
// through the returned request when blocking is set.
type fakeRouter struct {
	route    *directions.Route
	err      error
	requests chan *pendingRoute
	calls    []routeCall
	mu       sync.Mutex
}

type pendingRoute struct {
	call  routeCall
	reply chan routeReply
}

type routeReply struct {
	route *directions.Route
	err   error
}

func (p *pendingRoute) respond(route *directions.Route, err error) {
	p.reply <- routeReply{route: route, err: err}
}

func newBlockingRouter() *fakeRouter {
	return &fakeRouter{requests: make(chan *pendingRoute, 16)}
}

func (r *fakeRouter) Route(_ context.Context, origin, destination geo.Coordinate) (*directions.Route, error) {
	call := routeCall{origin: origin, destination: destination}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	route, err, requests := r.route, r.err, r.requests
	r.mu.Unlock()

	if requests == nil {
		return route, err
	}

	// Cancellation is ignored so responses can be delivered out of order.
	p := &pendingRoute{call: call, reply: make(chan routeReply, 1)}
	requests <- p
	rep := <-p.reply
	return rep.route, rep.err
}

func (r *fakeRouter) set(route *directions.Route, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.route, r.err = route, err
}

func (r *fakeRouter) callLog() []routeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routeCall(nil), r.calls...)
}

func (r *fakeRouter) next() *pendingRoute {
	select {
	case p := <-r.requests:
		return p
	case <-time.After(2 * time.Second):
		panic("no route request arrived")
	}
}

// manualTimer replaces time.AfterFunc; scheduled functions run on fire.
type manualTimer struct {
	scheduled []*timerEntry
	mu        sync.Mutex
}

type timerEntry struct {
	f       func()
	d       time.Duration
	stopped bool
	fired   bool
}

func (t *manualTimer) AfterFunc(d time.Duration, f func()) func() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &timerEntry{d: d, f: f}
	t.scheduled = append(t.scheduled, e)

	return func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		if e.stopped || e.fired {
			return false
		}
		e.stopped = true
		return true
	}
}

// fire runs every pending function and returns how many ran.
func (t *manualTimer) fire() int {
	t.mu.Lock()
	var due []func()
	for _, e := range t.scheduled {
		if !e.stopped && !e.fired {
			e.fired = true
			due = append(due, e.f)
		}
	}
	t.mu.Unlock()

	for _, f := range due {
		f()
	}
	return len(due)
}

func (t *manualTimer) delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Duration, 0, len(t.scheduled))
	for _, e := range t.scheduled {
		out = append(out, e.d)
	}
	return out
}
