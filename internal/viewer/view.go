// Package viewer keeps the pickup/drop-off markers, the route between them
// and the map instance of one viewer session in sync.
//
// A View owns exactly one map at a time. Marker drags refit the map and
// request a new route; style switches tear the map down and build a new one
// with the markers re-attached. All state changes are published as State
// snapshots with increasing revisions.
package viewer

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/geo"
)

// AfterFunc schedules f after d and returns a function that stops it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// MapViewState is the camera and style of the current map.
type MapViewState struct {
	Style  string         `json:"style"`
	Center geo.Coordinate `json:"center"`
	Zoom   float64        `json:"zoom"`
}

// Readout holds the formatted values of the coordinate and route panels.
type Readout struct {
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
	Zoom      string `json:"zoom"`
	Pickup    string `json:"pickup"`
	Dropoff   string `json:"dropoff"`
	Distance  string `json:"distance"`
	Duration  string `json:"duration"`
}

// State is a snapshot of everything the view renders.
type State struct {
	Fit         *geo.Camera    `json:"fit,omitempty"`
	Route       RouteState     `json:"route"`
	MapError    string         `json:"map_error,omitempty"`
	MarkerError string         `json:"marker_error,omitempty"`
	Readout     Readout        `json:"readout"`
	View        MapViewState   `json:"view"`
	Pickup      geo.Coordinate `json:"pickup"`
	Dropoff     geo.Coordinate `json:"dropoff"`
	Revision    uint64         `json:"revision"`
	Mounted     bool           `json:"mounted"`
}

// Option customizes a View.
type Option func(*View)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(v *View) { v.log = l }
}

// WithAccessToken sets the credential passed to every map instance.
func WithAccessToken(token string) Option {
	return func(v *View) { v.accessToken = token }
}

// WithAfterFunc replaces the timer used for the initial route delay.
func WithAfterFunc(f AfterFunc) Option {
	return func(v *View) { v.afterFunc = f }
}

// View is one viewer instance.
type View struct {
	maps        MapFactory
	m           Map
	ctx         context.Context
	cancel      context.CancelFunc
	afterFunc   AfterFunc
	stopInitial func() bool
	store       *MarkerStore
	styles      *StyleSwitcher
	routes      *RouteRequester
	markers     map[MarkerKind]Marker
	fit         *geo.Camera
	cfg         config.Config
	accessToken string
	mapErr      string
	markerErr   string
	subs        []func(State)
	log         zerolog.Logger
	fitter      BoundsFitter
	view        MapViewState
	mu          sync.Mutex
	gen         uint64
	rev         uint64
	fits        uint64
	mounted     bool
}

// New creates an unmounted view.
func New(cfg config.Config, maps MapFactory, router directions.Router, opts ...Option) *View {
	v := &View{
		cfg:   cfg,
		maps:  maps,
		log:   log.Logger,
		store: NewMarkerStore(cfg.Markers.Pickup, cfg.Markers.Dropoff),
		fitter: BoundsFitter{
			Padding:  cfg.Fit.Padding,
			MaxZoom:  cfg.Fit.MaxZoom,
			Fallback: cfg.View.Viewport,
		},
		styles: NewStyleSwitcher(cfg.Styles, cfg.DefaultStyle),
		view: MapViewState{
			Style:  cfg.DefaultStyle,
			Center: cfg.View.Center,
			Zoom:   cfg.View.Zoom,
		},
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}

	for _, opt := range opts {
		opt(v)
	}
	v.routes = NewRouteRequester(router, v.log)

	return v
}

// Subscribe registers fn to receive every state change.
// fn is called without the view lock held and may call Snapshot.
func (v *View) Subscribe(fn func(State)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs, fn)
}

// Mount creates the map with the default style, attaches both markers,
// fits them once and schedules the first route request after the configured delay.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.mounted = true

	style, err := v.styles.Resolve(v.styles.Active())
	if err == nil {
		err = v.initMapLocked(ctx, style)
	}
	if err != nil {
		notify := v.changedLocked()
		v.mu.Unlock()
		notify()
		return err
	}

	v.fitLocked()
	v.stopInitial = v.afterFunc(v.cfg.Route.Debounce, v.initialRoute)

	notify := v.changedLocked()
	v.mu.Unlock()
	notify()

	v.log.Info().
		Str("style", style.ID).
		Stringer("pickup", v.cfg.Markers.Pickup).
		Stringer("dropoff", v.cfg.Markers.Dropoff).
		Msg("View mounted")

	return nil
}

// Unmount cancels pending work, removes the map and waits for in-flight route requests.
func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.stopInitialLocked()
	v.routes.Cancel()
	v.cancel()
	if v.m != nil {
		v.m.Remove()
		v.m = nil
		v.markers = nil
	}
	v.mu.Unlock()

	v.routes.Wait()
	v.log.Debug().Msg("View unmounted")
}

// DragEnd moves a marker to c on the current map.
func (v *View) DragEnd(kind MarkerKind, c geo.Coordinate) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	err := v.dragEndLocked(kind, c)
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()

	return err
}

// SetPickup is DragEnd for the pickup marker.
func (v *View) SetPickup(c geo.Coordinate) error { return v.DragEnd(Pickup, c) }

// SetDropoff is DragEnd for the drop-off marker.
func (v *View) SetDropoff(c geo.Coordinate) error { return v.DragEnd(Dropoff, c) }

// Move records a camera change reported by the map.
func (v *View) Move(center geo.Coordinate, zoom float64) {
	v.mu.Lock()
	v.view.Center = center
	v.view.Zoom = zoom
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()
}

// SetStyle switches the base map style. The map is rebuilt with the default
// center, zoom and bounds; markers keep their positions and the route is
// requested again. Selecting the active style of a live map does nothing.
func (v *View) SetStyle(ctx context.Context, id string) error {
	style, err := v.styles.Resolve(id)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	if v.m != nil && v.styles.Active() == style.ID {
		v.mu.Unlock()
		return nil
	}

	v.stopInitialLocked()
	err = v.initMapLocked(ctx, style)
	if err == nil {
		v.requestRouteLocked()
	}
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()

	if err == nil {
		v.log.Info().Str("style", style.ID).Msg("Map style switched")
	}

	return err
}

// LogMarkers writes both marker positions to the log.
func (v *View) LogMarkers() {
	v.mu.Lock()
	pickup, dropoff := v.store.Pickup(), v.store.Dropoff()
	v.mu.Unlock()

	v.log.Info().
		Stringer("pickup", pickup).
		Stringer("dropoff", dropoff).
		Msg("Marker coordinates")
}

// Snapshot returns the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Fits returns how many times the bounds fitter ran.
func (v *View) Fits() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fits
}

// RouteRequests returns how many route requests were issued.
func (v *View) RouteRequests() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.routes.Issued()
}

// Wait blocks until in-flight route requests have returned and been applied.
func (v *View) Wait() {
	v.routes.Wait()
}

// initMapLocked replaces the current map with a new one using style.
func (v *View) initMapLocked(ctx context.Context, style config.Style) error {
	v.routes.Cancel()
	if v.m != nil {
		v.m.Remove()
		v.m = nil
		v.markers = nil
	}
	v.gen++
	gen := v.gen

	v.styles.activate(style.ID)
	v.view = MapViewState{
		Style:  style.ID,
		Center: v.cfg.View.Center,
		Zoom:   v.cfg.View.Zoom,
	}
	v.fit = nil

	m, err := v.maps.NewMap(ctx, MapOptions{
		Style:       style,
		Center:      v.cfg.View.Center,
		Zoom:        v.cfg.View.Zoom,
		MaxBounds:   v.cfg.View.MaxBounds,
		AccessToken: v.accessToken,
	})
	if err != nil {
		return v.mapFailedLocked(nil, err)
	}

	if err := m.AddControl(ControlNavigation); err != nil {
		return v.mapFailedLocked(m, err)
	}
	m.OnMove(func(center geo.Coordinate, zoom float64) {
		v.mapMoved(gen, center, zoom)
	})

	markers := make(map[MarkerKind]Marker, len(MarkerKinds))
	for _, kind := range MarkerKinds {
		kind := kind
		mk, err := m.AddMarker(MarkerOptions{
			Position:  v.store.Get(kind),
			Draggable: true,
			Color:     v.markerColor(kind),
			PopupHTML: popupHTML(kind),
		})
		if err != nil {
			return v.mapFailedLocked(m, err)
		}

		mk.OnDragEnd(func(c geo.Coordinate) {
			v.markerDragged(gen, kind, c)
		})
		markers[kind] = mk
	}

	v.m = m
	v.markers = markers
	v.mapErr = ""

	return nil
}

func (v *View) mapFailedLocked(m Map, err error) error {
	if m != nil {
		m.Remove()
	}
	v.mapErr = "map could not be loaded: " + err.Error()
	v.log.Error().Err(err).Str("style", v.styles.Active()).Msg("Map initialization failed")

	return fmt.Errorf("%w: %w", ErrMapInit, err)
}

func (v *View) dragEndLocked(kind MarkerKind, c geo.Coordinate) error {
	if err := v.store.Set(kind, c); err != nil {
		v.markerErr = fmt.Sprintf("%s marker: %v", kind, err)
		if mk := v.markers[kind]; mk != nil {
			mk.SetLngLat(v.store.Get(kind))
		}
		v.log.Warn().Err(err).Str("marker", string(kind)).Msg("Rejected marker position")
		return err
	}
	v.markerErr = ""

	v.stopInitialLocked()
	v.fitLocked()
	v.requestRouteLocked()

	return nil
}

func (v *View) fitLocked() {
	if v.m == nil {
		return
	}
	_, camera := v.fitter.Fit(v.m, v.store.Pickup(), v.store.Dropoff())
	v.fit = &camera
	v.fits++
}

func (v *View) requestRouteLocked() {
	v.routes.Begin(v.ctx, v.store.Pickup(), v.store.Dropoff(), v.routeDone)
}

func (v *View) initialRoute() {
	v.mu.Lock()
	if !v.mounted || v.stopInitial == nil {
		v.mu.Unlock()
		return
	}
	v.stopInitial = nil
	v.requestRouteLocked()
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()
}

func (v *View) stopInitialLocked() {
	if v.stopInitial != nil {
		v.stopInitial()
		v.stopInitial = nil
	}
}

func (v *View) routeDone(token uint64, route *directions.Route, err error) {
	v.mu.Lock()
	if !v.routes.Apply(v.m, token, route, err) {
		v.mu.Unlock()
		v.log.Debug().Uint64("token", token).Msg("Discarding stale route response")
		return
	}
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()
}

func (v *View) markerDragged(gen uint64, kind MarkerKind, c geo.Coordinate) {
	v.mu.Lock()
	if !v.mounted || gen != v.gen {
		v.mu.Unlock()
		v.log.Debug().Str("marker", string(kind)).Msg("Ignoring drag from a removed map")
		return
	}
	_ = v.dragEndLocked(kind, c)
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()
}

func (v *View) mapMoved(gen uint64, center geo.Coordinate, zoom float64) {
	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return
	}
	v.view.Center = center
	v.view.Zoom = zoom
	notify := v.changedLocked()
	v.mu.Unlock()
	notify()
}

func (v *View) markerColor(kind MarkerKind) string {
	if kind == Dropoff {
		return v.cfg.Markers.DropoffColor
	}
	return v.cfg.Markers.PickupColor
}

func popupHTML(kind MarkerKind) string {
	return `<h3 class="popup-title">` + html.EscapeString(kind.Label()) + `</h3>`
}

// changedLocked bumps the revision and returns a function that delivers the
// new snapshot to subscribers. Call it after releasing the lock.
func (v *View) changedLocked() func() {
	v.rev++
	st := v.snapshotLocked()
	subs := make([]func(State), len(v.subs))
	copy(subs, v.subs)

	return func() {
		for _, fn := range subs {
			fn(st)
		}
	}
}

func (v *View) snapshotLocked() State {
	st := State{
		Revision:    v.rev,
		Mounted:     v.mounted,
		View:        v.view,
		Pickup:      v.store.Pickup(),
		Dropoff:     v.store.Dropoff(),
		Route:       v.routes.State(),
		MapError:    v.mapErr,
		MarkerError: v.markerErr,
	}
	if v.fit != nil {
		camera := *v.fit
		st.Fit = &camera
	}
	st.Readout = readout(st)

	return st
}

func readout(st State) Readout {
	r := Readout{
		Longitude: fmt.Sprintf("%.4f", st.View.Center.Lng),
		Latitude:  fmt.Sprintf("%.4f", st.View.Center.Lat),
		Zoom:      fmt.Sprintf("%.2f", st.View.Zoom),
		Pickup:    st.Pickup.String(),
		Dropoff:   st.Dropoff.String(),
		Distance:  "-",
		Duration:  "-",
	}

	switch st.Route.Status {
	case RouteReady:
		if s := st.Route.Summary; s != nil {
			r.Distance = s.DistanceKm.String() + " km"
			r.Duration = s.DurationMin.String() + " min"
		}
	case RouteUnavailable:
		r.Distance = ErrRouteUnavailable.Error()
		r.Duration = ErrRouteUnavailable.Error()
	case RoutePending:
		r.Distance = "calculating"
		r.Duration = "calculating"
	}

	return r
}
