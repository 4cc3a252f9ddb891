package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bgg-proxy/api"
	"bgg-proxy/bgg"
	"bgg-proxy/config"
	"bgg-proxy/health"
	"bgg-proxy/metrics"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	setLogger()
	log.Info().Msgf("Starting bgg-proxy version: %s", version)

	// Load config
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && os.Getenv("DEBUG") == "" {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	// Preflight required configuration
	if cfg.Token == "" {
		log.Fatal().Msg("missing BGG token; set BGG_TOKEN in the environment or the local env file")
	}

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	health.Register(e)
	metrics.Register(e)

	client := bgg.NewClient(cfg)
	api.New(client).Register(e)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting http server")
		if err := e.Start(cfg.HTTPAddr()); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Block until shutdown
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
