package server

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/woozymasta/routeview/internal/geo"
	"github.com/woozymasta/routeview/internal/viewer"
)

// Message types on the session socket.
const (
	msgCommand = "cmd"
	msgState   = "state"
	msgAck     = "ack"
	msgNack    = "nack"
	msgEvent   = "event"
	msgIntent  = "intent"
)

// Command operations executed by the browser.
const (
	opMapCreate       = "map.create"
	opMapRemove       = "map.remove"
	opMapAddControl   = "map.addControl"
	opMapFitBounds    = "map.fitBounds"
	opMarkerAdd       = "marker.add"
	opMarkerSetLngLat = "marker.setLngLat"
	opMarkerSetPopup  = "marker.setPopup"
	opOverlayAdd      = "overlay.add"
	opOverlayRemove   = "overlay.remove"
)

// command is a server to browser instruction.
type command struct {
	Args   interface{} `json:"args,omitempty"`
	Type   string      `json:"type"`
	Op     string      `json:"op"`
	Target string      `json:"target"`
	ID     uint64      `json:"id"`
}

type stateMessage struct {
	Type  string       `json:"type"`
	State viewer.State `json:"state"`
}

type mapCreateArgs struct {
	MaxBounds   *geo.Bounds    `json:"maxBounds,omitempty"`
	Style       string         `json:"style"`
	AccessToken string         `json:"accessToken,omitempty"`
	Center      geo.Coordinate `json:"center"`
	Zoom        float64        `json:"zoom"`
}

type controlArgs struct {
	Kind viewer.ControlKind `json:"kind"`
}

type fitBoundsArgs struct {
	Bounds  geo.Bounds        `json:"bounds"`
	Options viewer.FitOptions `json:"options"`
}

type markerAddArgs struct {
	Map       string         `json:"map"`
	Color     string         `json:"color,omitempty"`
	Popup     string         `json:"popup,omitempty"`
	LngLat    geo.Coordinate `json:"lngLat"`
	Draggable bool           `json:"draggable"`
}

type lngLatArgs struct {
	LngLat geo.Coordinate `json:"lngLat"`
}

type popupArgs struct {
	HTML string `json:"html"`
}

type overlayAddArgs struct {
	Data *geojson.FeatureCollection `json:"data"`
	Map  string                     `json:"map"`
}

// inbound is the raw browser to server message. It is decoded once and
// turned into one of the typed messages below.
type inbound struct {
	LngLat   *geo.Coordinate `json:"lngLat,omitempty"`
	Viewport *geo.Viewport   `json:"viewport,omitempty"`
	Zoom     *float64        `json:"zoom,omitempty"`
	Type     string          `json:"type"`
	Error    string          `json:"error,omitempty"`
	Event    string          `json:"event,omitempty"`
	Intent   string          `json:"intent,omitempty"`
	Target   string          `json:"target,omitempty"`
	Style    string          `json:"style,omitempty"`
	ID       uint64          `json:"id,omitempty"`
}

// reply answers a command that waits for the browser.
type reply struct {
	Viewport geo.Viewport
	Err      error
}

type moveEvent struct {
	Viewport *geo.Viewport
	Target   string
	Center   geo.Coordinate
	Zoom     float64
}

type dragEndEvent struct {
	Target string
	LngLat geo.Coordinate
}

type styleIntent struct {
	Style string
}

type logMarkersIntent struct{}

type replyMessage struct {
	ID    uint64
	Reply reply
}

// decode validates the shape of the message and returns its typed form.
func (m inbound) decode() (interface{}, error) {
	switch m.Type {
	case msgAck, msgNack:
		if m.ID == 0 {
			return nil, fmt.Errorf("%s without id", m.Type)
		}
		r := reply{}
		if m.Viewport != nil {
			r.Viewport = *m.Viewport
		}
		if m.Type == msgNack {
			msg := m.Error
			if msg == "" {
				msg = "rejected by client"
			}
			r.Err = fmt.Errorf("%s", msg)
		}
		return replyMessage{ID: m.ID, Reply: r}, nil

	case msgEvent:
		if m.Target == "" {
			return nil, fmt.Errorf("event %q without target", m.Event)
		}
		switch m.Event {
		case "move":
			if m.LngLat == nil || m.Zoom == nil {
				return nil, fmt.Errorf("move event needs lngLat and zoom")
			}
			return moveEvent{Target: m.Target, Center: *m.LngLat, Zoom: *m.Zoom, Viewport: m.Viewport}, nil
		case "dragend":
			if m.LngLat == nil {
				return nil, fmt.Errorf("dragend event needs lngLat")
			}
			return dragEndEvent{Target: m.Target, LngLat: *m.LngLat}, nil
		default:
			return nil, fmt.Errorf("unknown event %q", m.Event)
		}

	case msgIntent:
		switch m.Intent {
		case "style":
			if m.Style == "" {
				return nil, fmt.Errorf("style intent without style")
			}
			return styleIntent{Style: m.Style}, nil
		case "logMarkers":
			return logMarkersIntent{}, nil
		default:
			return nil, fmt.Errorf("unknown intent %q", m.Intent)
		}

	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}
