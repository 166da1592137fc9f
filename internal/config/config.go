// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/woozymasta/routeview/internal/geo"

	"gopkg.in/yaml.v3"
)

// Style identifiers recognized by the viewer buttons.
const (
	StyleStreet    = "street"
	StyleSatellite = "satellite"
)

// Config represents the root configuration file structure.
type Config struct {
	Directions   Directions `yaml:"directions" json:"-"`
	Cache        Cache      `yaml:"cache" json:"-"`
	Attribution  string     `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	DefaultStyle string     `yaml:"default_style" json:"default_style" validate:"required"`
	Styles       []Style    `yaml:"styles" json:"styles" validate:"required,min=1,dive"`
	View         View       `yaml:"view" json:"view"`
	Markers      Markers    `yaml:"markers" json:"markers"`
	Fit          Fit        `yaml:"fit" json:"fit"`
	Route        Route      `yaml:"route" json:"-"`
}

// Style is a base map theme. URL is an opaque reference owned by the map renderer.
type Style struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"-" validate:"required"`
}

// View holds the map defaults restored on every map initialization.
type View struct {
	MaxBounds *geo.Bounds    `yaml:"max_bounds,omitempty" json:"max_bounds,omitempty"`
	Center    geo.Coordinate `yaml:"center" json:"center"`
	Viewport  geo.Viewport   `yaml:"viewport" json:"-"` // used until the browser reports its size
	Zoom      float64        `yaml:"zoom" json:"zoom" validate:"gte=0,lte=24"`
}

// Markers holds the initial pickup and drop-off positions.
type Markers struct {
	Pickup       geo.Coordinate `yaml:"pickup" json:"pickup"`
	Dropoff      geo.Coordinate `yaml:"dropoff" json:"dropoff"`
	PickupColor  string         `yaml:"pickup_color,omitempty" json:"pickup_color,omitempty"`
	DropoffColor string         `yaml:"dropoff_color,omitempty" json:"dropoff_color,omitempty"`
}

// Fit controls how the map is framed around both markers.
type Fit struct {
	Padding float64 `yaml:"padding" json:"padding" validate:"gte=0"`
	MaxZoom float64 `yaml:"max_zoom" json:"max_zoom" validate:"gte=0,lte=24"`
}

// Route controls route requests issued by the viewer.
type Route struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// Directions configures the routing service client.
type Directions struct {
	Provider  string        `yaml:"provider" validate:"oneof=osrm mapbox"`
	BaseURL   string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Profile   string        `yaml:"profile" validate:"required"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	RateLimit float64       `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst" validate:"gte=0"`
}

// Cache configures the optional Redis route cache.
type Cache struct {
	RedisURL string        `yaml:"redis_url,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Default returns the built-in configuration. Files loaded with Load are
// applied on top of it.
func Default() Config {
	return Config{
		DefaultStyle: StyleStreet,
		Styles: []Style{
			{ID: StyleStreet, Name: "Street", URL: "mapbox://styles/mapbox/streets-v12"},
			{ID: StyleSatellite, Name: "Satellite", URL: "mapbox://styles/mapbox/satellite-streets-v12"},
		},
		View: View{
			Center:   geo.LngLat(122.9545, 12.8797),
			Zoom:     5,
			Viewport: geo.Viewport{Width: 1280, Height: 800},
			MaxBounds: &geo.Bounds{
				SW: geo.LngLat(116.95, 4.6),
				NE: geo.LngLat(127.3, 21.7),
			},
		},
		Markers: Markers{
			Pickup:  geo.LngLat(124.45771485849178, 8.596826464192702),
			Dropoff: geo.LngLat(124.5723121079061, 8.521490348231794),
		},
		Fit: Fit{
			Padding: 50,
			MaxZoom: 11,
		},
		Route: Route{
			Debounce: time.Second,
		},
		Directions: Directions{
			Provider:  "osrm",
			Profile:   "driving",
			Timeout:   10 * time.Second,
			RateLimit: 1,
			Burst:     1,
		},
		Cache: Cache{
			TTL:    10 * time.Minute,
			Prefix: "routeview:route:",
		},
	}
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field ranges and cross-field references.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Styles))
	for _, s := range c.Styles {
		if seen[s.ID] {
			return fmt.Errorf("invalid configuration: duplicate style id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if !seen[c.DefaultStyle] {
		return fmt.Errorf("invalid configuration: default_style %q is not defined in styles", c.DefaultStyle)
	}

	if c.View.MaxBounds != nil {
		if err := c.View.MaxBounds.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: view.max_bounds: %w", err)
		}
		if !c.View.MaxBounds.Contains(c.View.Center) {
			return fmt.Errorf("invalid configuration: view.center %s is outside view.max_bounds", c.View.Center)
		}
	}

	return nil
}

// Style returns the style with the given id.
func (c *Config) Style(id string) (Style, bool) {
	for _, s := range c.Styles {
		if s.ID == id {
			return s, true
		}
	}

	return Style{}, false
}
