package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/routeview/internal/config"
	"github.com/woozymasta/routeview/internal/directions"
	"github.com/woozymasta/routeview/internal/logger"
	"github.com/woozymasta/routeview/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile     string        `short:"c" long:"config"          env:"CONFIG_FILE"      description:"Path to configuration file" default:"config.yaml"`
	Addr           string        `short:"a" long:"addr"            env:"LISTEN_ADDRESS"   description:"Address to listen on"       default:"0.0.0.0"`
	Port           int           `short:"p" long:"port"            env:"LISTEN_PORT"      description:"Port to listen on"          default:"8080"`
	AccessToken    string        `short:"t" long:"access-token"    env:"MAP_ACCESS_TOKEN" description:"Map provider access token"`
	AllowedOrigins []string      `long:"allowed-origin"            env:"ALLOWED_ORIGINS"  env-delim:"," description:"Extra origins allowed to open sessions"`
	AckTimeout     time.Duration `long:"ack-timeout"               env:"ACK_TIMEOUT"      description:"How long to wait for the browser to create a map" default:"15s"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, closeRouter, err := directions.FromConfig(ctx, cfg.Directions, cfg.Cache, opts.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure directions")
	}
	defer func() {
		if err := closeRouter(); err != nil {
			log.Warn().Err(err).Msg("Failed to close route cache")
		}
	}()

	srvCtx, err := server.NewServerContext(cfg, router, opts.AccessToken, opts.AllowedOrigins)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	if opts.AckTimeout > 0 {
		srvCtx.AckTimeout = opts.AckTimeout
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.RequestLogger(srvCtx.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Int("styles", len(cfg.Styles)).
		Str("default_style", cfg.DefaultStyle).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Server stopped")
}
