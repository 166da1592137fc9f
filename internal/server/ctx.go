package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/assets"
	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/directions"
)

const defaultAckTimeout = 15 * time.Second

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config      *config.Config
	Router      directions.Router
	Upgrader    websocket.Upgrader
	AccessToken string
	IndexHTML   []byte
	Favicon     []byte
	AckTimeout  time.Duration

	indexETag string
}

// NewServerContext initializes the context and checks the style configuration.
// Styles that need an access token are skipped when none is configured.
func NewServerContext(cfg *config.Config, router directions.Router, accessToken string, allowedOrigins []string) (*ServerContext, error) {
	log.Info().Int("config_styles_count", len(cfg.Styles)).Msg("Initializing server context")

	validStyles := make([]config.Style, 0, len(cfg.Styles))
	for _, style := range cfg.Styles {
		if accessToken == "" && requiresToken(style.URL) {
			log.Warn().
				Str("style", style.ID).
				Msg("Skipping style: it needs an access token and none is configured")
			continue
		}

		log.Debug().
			Str("style", style.ID).
			Str("name", style.Name).
			Msg("Style validated and added to context")

		validStyles = append(validStyles, style)
	}

	if len(validStyles) == 0 {
		return nil, errors.New("no usable map styles: configure an access token or token-free styles")
	}

	cfg.Styles = validStyles
	if _, ok := cfg.Style(cfg.DefaultStyle); !ok {
		log.Warn().
			Str("default_style", cfg.DefaultStyle).
			Str("fallback", validStyles[0].ID).
			Msg("Default style unavailable, using first usable style")
		cfg.DefaultStyle = validStyles[0].ID
	}

	log.Info().
		Int("valid_styles_count", len(cfg.Styles)).
		Str("default_style", cfg.DefaultStyle).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:      cfg,
		Router:      router,
		AccessToken: accessToken,
		IndexHTML:   assets.Index,
		Favicon:     assets.Favicon,
		AckTimeout:  defaultAckTimeout,
		indexETag:   contentETag(assets.Index),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}, nil
}

// contentETag derives a strong ETag from the page bytes.
func contentETag(content []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(content))
}

func requiresToken(styleURL string) bool {
	return strings.HasPrefix(styleURL, "mapbox://") || strings.Contains(styleURL, "api.mapbox.com")
}

// originChecker allows same-origin requests plus the listed origins.
// A single "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		return strings.EqualFold(host, r.Host)
	}
}
