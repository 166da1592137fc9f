package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/internal/geo"
	"golang.org/x/time/rate"
)

// Provider selects the URL layout of the routing service.
type Provider string

const (
	// ProviderOSRM is an OSRM server (/route/v1/{profile}/...).
	ProviderOSRM Provider = "osrm"
	// ProviderMapbox is the Mapbox Directions API (/directions/v5/mapbox/{profile}/...).
	ProviderMapbox Provider = "mapbox"
)

const (
	defaultOSRMURL   = "https://router.project-osrm.org"
	defaultMapboxURL = "https://api.mapbox.com"
	defaultProfile   = "driving"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
	minLimiterPoll   = 5 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	Provider    Provider
	BaseURL     string
	Profile     string
	AccessToken string
	UserAgent   string
	Timeout     time.Duration
	// RateLimit is the number of upstream requests per second, 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client talks to an OSRM-compatible routing service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       Options
}

type serviceResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Routes  []serviceRoute `json:"routes"`
}

type serviceRoute struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Distance float64           `json:"distance"` // in meters
	Duration float64           `json:"duration"` // in seconds
}

// NewClient creates a routing client, filling defaults for empty options.
func NewClient(opts Options) *Client {
	if opts.Provider == "" {
		opts.Provider = ProviderOSRM
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOSRMURL
		if opts.Provider == ProviderMapbox {
			opts.BaseURL = defaultMapboxURL
		}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Profile == "" {
		opts.Profile = defaultProfile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		opts:       opts,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Profile returns the routing profile, used to namespace cache keys.
func (c *Client) Profile() string {
	return string(c.opts.Provider) + "/" + c.opts.Profile
}

// Route asks the service for a driving route from origin to destination.
func (c *Client) Route(ctx context.Context, origin, destination geo.Coordinate) (*Route, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(origin, destination), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL, which may include the access token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("provider", string(c.opts.Provider)).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Directions request finished")

	var body serviceResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&body)

	// OSRM reports NoRoute with a 400 status, Mapbox with 200
	if decodeErr == nil && (body.Code == "NoRoute" || body.Code == "NoSegment") {
		return nil, ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		msg := body.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(msg, maxErrorBody))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, decodeErr)
	}
	if body.Code != "Ok" {
		return nil, fmt.Errorf("%w: code %s: %s", ErrUnavailable, body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return nil, ErrNoRoute
	}

	first := body.Routes[0]
	route := &Route{
		DistanceMeters:  first.Distance,
		DurationSeconds: first.Duration,
	}
	if first.Geometry != nil {
		if line, ok := first.Geometry.Geometry().(orb.LineString); ok {
			route.Geometry = line
		}
	}

	return route, nil
}

// wait blocks until the limiter allows one request. Waiters hold no
// reservation, so a cancelled request never delays the ones behind it.
func (c *Client) wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.limiter.Allow() {
			return nil
		}

		delay := time.Duration((1 - c.limiter.Tokens()) / float64(c.limiter.Limit()) * float64(time.Second))
		if delay < minLimiterPoll {
			delay = minLimiterPoll
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return errors.New("rate limit wait would exceed context deadline")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// endpoint builds the service URL: lng,lat;lng,lat format.
func (c *Client) endpoint(origin, destination geo.Coordinate) string {
	coords := fmt.Sprintf("%.6f,%.6f;%.6f,%.6f",
		origin.Lng, origin.Lat,
		destination.Lng, destination.Lat,
	)

	params := url.Values{}
	params.Set("alternatives", "false")
	params.Set("geometries", "geojson")
	params.Set("overview", "full")
	params.Set("steps", "false")

	var path string
	switch c.opts.Provider {
	case ProviderMapbox:
		path = "/directions/v5/mapbox/" + c.opts.Profile + "/" + coords
		params.Set("access_token", c.opts.AccessToken)
	default:
		path = "/route/v1/" + c.opts.Profile + "/" + coords
	}

	return c.opts.BaseURL + path + "?" + params.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
