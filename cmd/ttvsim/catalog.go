package main

import (
	"context"
	"time"

	"github.com/tchin/transit-timing-variation/internal/metrics"
	"github.com/tchin/transit-timing-variation/internal/system"
)

// loadSystems returns a store holding the presets and, when a catalog source is
// configured, the catalog systems.
func (a *app) loadSystems(ctx context.Context) (*system.Store, *system.Fetcher, catalogConfig, error) {
	cfg := loadCatalogConfig(a.logger, a.v)
	store := system.NewStore()
	if cfg.Source == "" {
		return store, nil, cfg, nil
	}

	fetcher := system.NewFetcher(cfg.Source, a.logger)
	if cfg.SnapshotDir != "" {
		fetcher.WithSnapshots(system.NewSnapshots(cfg.SnapshotDir, cfg.SnapshotKeep))
	}
	c, err := fetcher.Load(ctx, store)
	if err != nil {
		return nil, nil, cfg, err
	}
	metrics.SetCatalogSystems(len(c.Systems))
	return store, fetcher, cfg, nil
}

// refreshCatalog reloads the catalog every interval until ctx is done. A failed
// reload keeps the previous catalog.
func (a *app) refreshCatalog(ctx context.Context, fetcher *system.Fetcher, store *system.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c, err := fetcher.Load(ctx, store)
			if err != nil {
				a.logger.Warn("catalog refresh failed, keeping previous catalog",
					"source", fetcher.Source(), "age_seconds", int(store.AgeSeconds()), "error", err)
				continue
			}
			metrics.SetCatalogSystems(len(c.Systems))
		case <-ctx.Done():
			return
		}
	}
}
