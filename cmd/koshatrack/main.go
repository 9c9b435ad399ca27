package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kosha/koshatrack/internal/api"
	"github.com/kosha/koshatrack/internal/auth"
	"github.com/kosha/koshatrack/internal/config"
	"github.com/kosha/koshatrack/internal/conjunction"
	"github.com/kosha/koshatrack/internal/metrics"
	"github.com/kosha/koshatrack/internal/orbit"
	"github.com/kosha/koshatrack/internal/propagate"
	"github.com/kosha/koshatrack/internal/tle"
	"github.com/kosha/koshatrack/internal/validate"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (falls back to KOSHATRACK_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	gm := orbit.WGS84()
	gate := validate.NewGate(cfg.Gate.Token, cfg.Gate.Policy, gm)

	prop := propagate.NewPropagator(gm, cfg.Force, propagate.Config{
		Workers:      cfg.Propagation.Workers,
		Step:         cfg.Propagation.Step.Std(),
		Method:       cfg.Propagation.Method,
		Tolerance:    cfg.Propagation.Tolerance,
		MinStep:      cfg.Propagation.MinStep.Std(),
		MinAltitude:  cfg.Propagation.MinAltitude,
		EscapeRadius: cfg.Propagation.EscapeRadius,
	}, logger)

	pipeline := conjunction.NewPipeline(gm, prop, conjunction.Config{
		Window:          cfg.Screening.Window.Std(),
		CoarseSamples:   cfg.Screening.CoarseSamples,
		ScreenThreshold: cfg.Screening.ScreenThreshold,
		Threshold:       cfg.Screening.Threshold,
		RefineTolerance: cfg.Screening.RefineTolerance.Std(),
		Workers:         cfg.Screening.Workers,
	}, logger)

	store := tle.NewStore()
	handlers := api.NewHandlers(gate, prop, pipeline, cfg.Risk.Engine(), store,
		cfg.Screening.Window.Std(), logger)

	authCfg := auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token}
	srv := api.NewServer(cfg.Server.Address, logger, authCfg, cfg.Server.TrustProxy, handlers)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Address,
			"auth_enabled", cfg.Auth.Enabled,
			"gate_policy", string(cfg.Gate.Policy),
			"method", string(cfg.Propagation.Method),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout.Std())
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
