// Package cache keeps recent simulation reports and their rendered plots in
// memory so repeated reads skip the database and the renderer.
package cache

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tchin/transit-timing-variation/internal/metrics"
	"github.com/tchin/transit-timing-variation/internal/runner"
)

// DefaultSize is the report capacity used when Config.Size is zero.
const DefaultSize = 1024

// Config holds cache configuration.
type Config struct {
	Size     int // reports kept (default: 1024)
	PlotSize int // rendered plots kept (default: 2*Size)
}

// ReportCache is an LRU of reports keyed by run ID plus an LRU of PNG bytes.
// Safe for concurrent use by multiple goroutines.
type ReportCache struct {
	reports *lru.Cache[string, *runner.Report]
	plots   *lru.Cache[string, []byte]
	size    int
	logger  *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Reports   int   `json:"reports"`
	Plots     int   `json:"plots"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// NewReportCache creates a cache with the configured capacities.
func NewReportCache(cfg Config, logger *slog.Logger) (*ReportCache, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.PlotSize <= 0 {
		cfg.PlotSize = 2 * cfg.Size
	}

	c := &ReportCache{size: cfg.Size, logger: logger}
	reports, err := lru.NewWithEvict[string, *runner.Report](cfg.Size, func(string, *runner.Report) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("creating report cache: %w", err)
	}
	plots, err := lru.New[string, []byte](cfg.PlotSize)
	if err != nil {
		return nil, fmt.Errorf("creating plot cache: %w", err)
	}
	c.reports = reports
	c.plots = plots

	logger.Info("cache initialized", "reports", cfg.Size, "plots", cfg.PlotSize)
	return c, nil
}

// Get returns the report for id, or nil if it is not cached.
func (c *ReportCache) Get(id string) *runner.Report {
	if r, ok := c.reports.Get(id); ok {
		c.hits.Add(1)
		metrics.CacheHit()
		return r
	}
	c.misses.Add(1)
	metrics.CacheMiss()
	return nil
}

// Put stores a report under its ID.
func (c *ReportCache) Put(r *runner.Report) {
	if r == nil || r.ID == "" {
		return
	}
	c.reports.Add(r.ID, r)
}

// Plot returns a cached PNG for id and kind.
func (c *ReportCache) Plot(id, kind string) ([]byte, bool) {
	return c.plots.Get(id + "/" + kind)
}

// PutPlot caches a rendered PNG.
func (c *ReportCache) PutPlot(id, kind string, png []byte) {
	c.plots.Add(id+"/"+kind, png)
}

// Stats returns current cache statistics.
func (c *ReportCache) Stats() CacheStats {
	return CacheStats{
		Reports:   c.reports.Len(),
		Plots:     c.plots.Len(),
		Capacity:  c.size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
