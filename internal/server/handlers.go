// Package server handles HTTP requests, middleware and viewer sessions.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/woozymasta/routeview/internal/config"
)

type stylesResponse struct {
	Attribution  string         `json:"attribution,omitempty"`
	DefaultStyle string         `json:"default_style"`
	Styles       []config.Style `json:"styles"`
}

// HandleStyles serves the styles offered by the switch buttons.
func (s *ServerContext) HandleStyles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(stylesResponse{
		Attribution:  s.Config.Attribution,
		DefaultStyle: s.Config.DefaultStyle,
		Styles:       s.Config.Styles,
	})
}

// HandleHealth reports that the process is serving.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("ok\n"))
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/favicon.svg" && r.URL.Path != "/favicon.ico" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := s.indexETag
	if etag == "" {
		etag = contentETag(s.IndexHTML)
	}

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// Routes registers all handlers on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/styles", s.HandleStyles)
	mux.HandleFunc("/api/session", s.HandleSession)
	mux.HandleFunc("/healthz", s.HandleHealth)
	mux.HandleFunc("/favicon.ico", s.HandleFavicon)
	mux.HandleFunc("/favicon.svg", s.HandleFavicon)
	mux.HandleFunc("/", s.HandleIndex)

	return mux
}
