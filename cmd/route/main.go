package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/geo"
	"github.com/woozymasta/routeview/internal/logger"
	"github.com/woozymasta/routeview/internal/viewer"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string        `short:"c" long:"config"       env:"CONFIG_FILE"      description:"Path to configuration file, built-in defaults are used if empty"`
	AccessToken string        `short:"t" long:"access-token" env:"MAP_ACCESS_TOKEN" description:"Map provider access token"`
	Output      string        `short:"o" long:"out"          description:"Output file path. Writes to stdout if empty"`
	Format      string        `short:"f" long:"format"       description:"Output format" choice:"json" choice:"yaml" choice:"geojson" default:"json"`
	FromLng     float64       `long:"from-lng" description:"Pickup longitude, config marker if unset"`
	FromLat     float64       `long:"from-lat" description:"Pickup latitude, config marker if unset"`
	ToLng       float64       `long:"to-lng"   description:"Drop-off longitude, config marker if unset"`
	ToLat       float64       `long:"to-lat"   description:"Drop-off latitude, config marker if unset"`
	Timeout     time.Duration `long:"timeout" description:"Overall request timeout" default:"30s"`
}

type result struct {
	Summary viewer.RouteSummary `json:"summary" yaml:"summary"`
	From    geo.Coordinate      `json:"from" yaml:"from"`
	To      geo.Coordinate      `json:"to" yaml:"to"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	from := cfg.Markers.Pickup
	if parser.FindOptionByLongName("from-lng").IsSet() || parser.FindOptionByLongName("from-lat").IsSet() {
		from = geo.LngLat(opts.FromLng, opts.FromLat)
	}
	to := cfg.Markers.Dropoff
	if parser.FindOptionByLongName("to-lng").IsSet() || parser.FindOptionByLongName("to-lat").IsSet() {
		to = geo.LngLat(opts.ToLng, opts.ToLat)
	}

	for name, c := range map[string]geo.Coordinate{"from": from, "to": to} {
		if err := c.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid %s coordinate: %v\n", name, err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	router, closeRouter, err := directions.FromConfig(ctx, cfg.Directions, cfg.Cache, opts.AccessToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring directions: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeRouter() }()

	route, err := router.Route(ctx, from, to)
	if err != nil {
		if errors.Is(err, directions.ErrNoRoute) {
			fmt.Fprintln(os.Stderr, "No route found between the given points")
		} else {
			fmt.Fprintf(os.Stderr, "Error requesting route: %v\n", err)
		}
		os.Exit(1)
	}

	summary := viewer.NewRouteSummary(route.DistanceMeters, route.DurationSeconds)

	// marshal
	var outputData []byte
	switch opts.Format {
	case "yaml":
		outputData, err = yaml.Marshal(result{Summary: summary, From: from, To: to})
	case "geojson":
		outputData, err = json.MarshalIndent(geo.RouteFeatureCollection(route.Geometry, from, to, geojson.Properties{
			"distance_km":  float64(summary.DistanceKm),
			"duration_min": int64(summary.DurationMin),
		}), "", "  ")
	default:
		outputData, err = json.MarshalIndent(result{Summary: summary, From: from, To: to}, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, outputData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Route %s km, %s min written to %s (format: %s)\n",
			summary.DistanceKm, summary.DurationMin, opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
