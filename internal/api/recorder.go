package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/tchin/transit-timing-variation/internal/cache"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/store"
)

// ReportSink receives every recorded report, e.g. a time-series exporter.
type ReportSink interface {
	Write(ctx context.Context, r *runner.Report) error
}

// Recorder keeps finished reports: in the cache, in the run history and,
// when configured, in the sink. Sink failures are logged, not returned.
type Recorder struct {
	reports *cache.ReportCache
	runs    *store.Store
	sink    ReportSink
	logger  *slog.Logger
}

// NewRecorder creates a recorder. sink may be nil.
func NewRecorder(reports *cache.ReportCache, runs *store.Store, sink ReportSink, logger *slog.Logger) *Recorder {
	return &Recorder{reports: reports, runs: runs, sink: sink, logger: logger}
}

// Record stores r. It uses its own context so a disconnected client does not
// lose the run.
func (rec *Recorder) Record(r *runner.Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec.reports.Put(r)
	if err := rec.runs.Save(ctx, r); err != nil {
		rec.logger.Error("failed to save run", "run_id", r.ID, "error", err)
		return err
	}
	if rec.sink != nil {
		if err := rec.sink.Write(ctx, r); err != nil {
			rec.logger.Warn("failed to export run", "run_id", r.ID, "error", err)
		}
	}
	return nil
}

// OnReport adapts Record to the stream handler callback. Save failures are
// logged by Record; the report stays in the cache either way.
func (rec *Recorder) OnReport(r *runner.Report) {
	_ = rec.Record(r)
}
