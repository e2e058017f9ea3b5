// Package sink exports simulation results to InfluxDB as time series.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/runner"
)

// Measurement names.
const (
	MeasurementTransit = "transit"
	MeasurementTTV     = "ttv"
	MeasurementFlux    = "flux"
	MeasurementRun     = "run"
)

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes report points with a blocking write API.
type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	config Config
	logger *slog.Logger
}

// NewInflux creates a client for cfg. It does not contact the server.
func NewInflux(cfg Config, logger *slog.Logger) (*Influx, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx url, org and bucket are required")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(2500))
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		config: cfg,
		logger: logger,
	}, nil
}

// Ping reports whether the server is reachable.
func (s *Influx) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("pinging influx: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx at %s is not running", s.config.URL)
	}
	return nil
}

// Write exports a report.
func (s *Influx) Write(ctx context.Context, r *runner.Report) error {
	points := Points(r)
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points for run %s: %w", len(points), r.ID, err)
	}
	s.logger.Debug("run exported", "run_id", r.ID, "points", len(points), "bucket", s.config.Bucket)
	return nil
}

// Close releases the client.
func (s *Influx) Close() {
	s.client.Close()
}

// Points converts a report into line-protocol points stamped with calendar time
// from the report epoch. Each TTV value is stamped at the transit that closes
// its second period.
func Points(r *runner.Report) []*write.Point {
	ep := epoch.New(r.Epoch)
	tags := map[string]string{"run_id": r.ID, "system": r.System}
	points := make([]*write.Point, 0, len(r.Transits)+len(r.Analysis.Variations)+len(r.Flux)+1)

	for i, t := range r.Transits {
		fields := map[string]interface{}{
			"index":        i,
			"time_seconds": t,
			"julian_date":  ep.Julian(t),
		}
		if i < len(r.Events) {
			fields["iterations"] = r.Events[i].Iterations
		}
		points = append(points, write.NewPoint(MeasurementTransit, tags, fields, ep.Time(t)))
	}

	interval := r.Analysis.Interval
	if interval < 1 {
		interval = 1
	}
	for k, v := range r.Analysis.Variations {
		idx := (k+1)*interval + 1
		if idx >= len(r.Transits) {
			idx = len(r.Transits) - 1
		}
		points = append(points, write.NewPoint(MeasurementTTV, tags, map[string]interface{}{
			"index":    k,
			"seconds":  v,
			"interval": interval,
		}, ep.Time(r.Transits[idx])))
	}

	for _, f := range r.Flux {
		points = append(points, write.NewPoint(MeasurementFlux, tags, map[string]interface{}{
			"step": f.Step,
			"flux": f.Flux,
		}, ep.Time(f.Time)))
	}

	points = append(points, write.NewPoint(MeasurementRun, map[string]string{
		"run_id": r.ID,
		"system": r.System,
		"status": r.Status,
	}, map[string]interface{}{
		"transits":    len(r.Transits),
		"steps":       r.Steps,
		"mean_period": r.Analysis.MeanPeriod,
		"ttv_rms":     r.Analysis.RMS,
		"duration_ms": r.DurationMS,
	}, r.CreatedAt))

	return points
}
