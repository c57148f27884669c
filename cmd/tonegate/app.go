package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/kalambet/tonegate/internal/config"
	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/profile"
	"github.com/kalambet/tonegate/internal/storage"
)

// app wires the orchestration layer for one CLI invocation.
type app struct {
	cfg      config.Config
	store    *storage.Store
	router   *gateway.Router
	profiles *profile.Store
	identity *profile.Identity
	logger   *slog.Logger
}

// openApp is a variable so tests can point the CLI at a fake backend.
var openApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, http.DefaultTransport)
}

func newApp(cfg config.Config, transport http.RoundTripper) (*app, error) {
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	timeout, err := cfg.Gateway.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	router := gateway.New(cfg.Gateway.BaseURL, gateway.Options{
		HTTPClient:        &http.Client{Timeout: timeout, Transport: transport},
		Logger:            logger,
		History:           store,
		Ledger:            store,
		IngestConcurrency: cfg.Ingest.Concurrency,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		router:   router,
		profiles: profile.NewStore(router, store),
		identity: profile.NewIdentity(store),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
