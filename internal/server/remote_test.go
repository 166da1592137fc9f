package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/routeview/internal/geo"
)

func TestRemoteMapTracksResize(t *testing.T) {
	m := &remoteMap{id: "map-1", size: geo.Viewport{Width: 1280, Height: 800}}

	m.resized(geo.Viewport{Width: 640, Height: 480})
	assert.Equal(t, geo.Viewport{Width: 640, Height: 480}, m.Size())

	// hidden containers report zero sizes
	m.resized(geo.Viewport{Width: 0, Height: 480})
	assert.Equal(t, geo.Viewport{Width: 640, Height: 480}, m.Size())
}
