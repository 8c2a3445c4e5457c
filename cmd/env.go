package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/carceral-ecologies/pfas-cli/internal/registry"
	"github.com/carceral-ecologies/pfas-cli/internal/resilience"
	"github.com/carceral-ecologies/pfas-cli/internal/store"
	"github.com/carceral-ecologies/pfas-cli/pkg/elevation"
)

// initStore opens the configured persistence backend and applies
// migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "pfas.db"
		}
		st, err = store.NewSQLite(path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initElevation builds the elevation client from config.
func initElevation() elevation.Client {
	opts := []elevation.Option{}
	if cfg.Elevation.RateLimit > 0 {
		opts = append(opts, elevation.WithRateLimit(cfg.Elevation.RateLimit))
	}
	if cfg.Elevation.MaxRetries > 0 {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Elevation.MaxRetries
		if cfg.Elevation.TimeoutSecs > 0 {
			retry.MaxBackoff = time.Duration(cfg.Elevation.TimeoutSecs) * time.Second
		}
		opts = append(opts, elevation.WithRetry(retry))
	}
	return elevation.New(cfg.Elevation.BaseURL, cfg.Elevation.Dataset, opts...)
}

// loadSources reads the source registry from the configured YAML file,
// falling back to the built-in study defaults.
func loadSources() ([]registry.Source, error) {
	sources, err := registry.Load(cfg.Data.SourcesYML)
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(sources); err != nil {
		return nil, err
	}
	return sources, nil
}
