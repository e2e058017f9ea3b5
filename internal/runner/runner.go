// Package runner wires a planetary system, the N-body oracle, the transit driver
// and the TTV analyzer into a single simulation run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/metrics"
	"github.com/tchin/transit-timing-variation/internal/propagation"
	"github.com/tchin/transit-timing-variation/internal/system"
	"github.com/tchin/transit-timing-variation/internal/transit"
	"github.com/tchin/transit-timing-variation/internal/ttv"
)

// Run outcomes, also used as the status metric label.
const (
	StatusOK             = "ok"
	StatusNonConvergence = "nonconvergence"
	StatusCancelled      = "cancelled"
	StatusError          = "error"
)

// Scenario describes one simulation.
type Scenario struct {
	System     system.System
	Transits   int       // transits to record
	Interval   int       // TTV comparison interval (default: 1)
	StepTime   float64   // driver step in seconds (default: 3600)
	Tolerance  float64   // ingress tolerance in seconds (default: 1)
	Timestep   float64   // oracle base timestep in seconds (default: 100)
	MaxSteps   int       // driver step ceiling (default: 2,000,000)
	SampleFlux bool      // keep in-transit flux samples
	Epoch      time.Time // calendar time of t = 0 (default: J2000)
}

// Options carries per-run hooks that are not part of the scenario.
type Options struct {
	// OnTransit is called from the run goroutine after each ingress.
	OnTransit func(transit.Event)
}

// Report is the outcome of a run.
type Report struct {
	ID          string               `json:"id"`
	System      string               `json:"system"`
	Planets     []string             `json:"planets"`
	CreatedAt   time.Time            `json:"created_at"`
	Status      string               `json:"status"`
	Error       string               `json:"error,omitempty"`
	Goal        int                  `json:"goal"`
	Interval    int                  `json:"interval"`
	StepTime    float64              `json:"step_seconds"`
	Epoch       time.Time            `json:"epoch"`
	Transits    []float64            `json:"transits"`
	JulianDates []float64            `json:"julian_dates"`
	Events      []transit.Event      `json:"events"`
	Flux        []transit.FluxSample `json:"flux,omitempty"`
	Analysis    ttv.Analysis         `json:"analysis"`
	Steps       int                  `json:"steps"`
	Iterations  int                  `json:"refine_iterations"`
	DurationMS  int64                `json:"duration_ms"`
	Warnings    []string             `json:"warnings,omitempty"`
}

// BuildOracle creates an SI-unit N-body simulation with the star at index 0 and
// the planets in order, each on a circular orbit, recentred on the centre of mass.
func BuildOracle(sys system.System, timestep float64) (*propagation.NBody, error) {
	sim, err := propagation.NewNBody(propagation.Config{Units: propagation.SI, Timestep: timestep})
	if err != nil {
		return nil, err
	}
	if err := sim.AddBody(propagation.Body{Mass: sys.Star.Mass}); err != nil {
		return nil, fmt.Errorf("add star %q: %w", sys.Star.Name, err)
	}
	for _, p := range sys.Planets {
		if err := sim.AddBody(propagation.Body{Mass: p.Mass, SemiMajorAxis: p.SemiMajorAxis}); err != nil {
			return nil, fmt.Errorf("add planet %q: %w", p.Name, err)
		}
	}
	sim.Recenter()
	return sim, nil
}

// Run executes one scenario. On a step ceiling or cancellation it returns the
// partial report together with the error.
func Run(ctx context.Context, sc Scenario, opts Options, logger *slog.Logger) (*Report, error) {
	start := time.Now()
	if sc.Interval == 0 {
		sc.Interval = 1
	}
	ep := epoch.New(sc.Epoch)

	report := &Report{
		ID:        uuid.NewString(),
		System:    sc.System.Name,
		CreatedAt: start.UTC(),
		Goal:      sc.Transits,
		Interval:  sc.Interval,
		Epoch:     ep.Origin,
	}
	for _, p := range sc.System.Planets {
		report.Planets = append(report.Planets, p.Name)
	}
	log := logger.With("run_id", report.ID, "system", sc.System.Name)

	fail := func(err error) (*Report, error) {
		report.Status = StatusError
		report.Error = err.Error()
		report.DurationMS = time.Since(start).Milliseconds()
		metrics.RecordRun(report.Status, 0, 0, time.Since(start))
		return report, err
	}

	if err := sc.System.Validate(); err != nil {
		return fail(err)
	}
	if sc.Interval < 1 {
		return fail(fmt.Errorf("%w: got %d", ttv.ErrInvalidInterval, sc.Interval))
	}

	oracle, err := BuildOracle(sc.System, sc.Timestep)
	if err != nil {
		return fail(err)
	}

	watched := sc.System.Watched()
	driver, err := transit.NewDriver(oracle, transit.Config{
		StarRadius:   sc.System.Star.Radius,
		PlanetRadius: watched.Radius,
		StepTime:     sc.StepTime,
		Tolerance:    sc.Tolerance,
		TransitGoal:  sc.Transits,
		MaxSteps:     sc.MaxSteps,
		SampleFlux:   sc.SampleFlux,
		OnTransit: func(ev transit.Event) {
			metrics.ObserveRefine(ev.Iterations)
			if opts.OnTransit != nil {
				opts.OnTransit(ev)
			}
		},
	}, log)
	if err != nil {
		return fail(err)
	}
	cfg := driver.Config()
	report.StepTime = cfg.StepTime

	if w := stepWarning(sc.System, watched, cfg.StepTime); w != "" {
		log.Warn("step time may skip transits", "step_seconds", cfg.StepTime, "detail", w)
		report.Warnings = append(report.Warnings, w)
	}

	log.Info("simulation starting",
		"planets", len(sc.System.Planets),
		"goal", sc.Transits,
		"step_seconds", cfg.StepTime,
		"interval", sc.Interval,
	)

	res, runErr := driver.Run(ctx)
	report.Status = statusOf(runErr)
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if res != nil {
		report.Transits = res.Transits
		report.Events = res.Events
		report.Steps = res.Steps
		report.Iterations = res.Iterations
		if sc.SampleFlux {
			report.Flux = res.Flux
		}
	}
	if report.Transits == nil {
		report.Transits = []float64{}
	}
	report.JulianDates = ep.Julians(report.Transits)

	analysis, err := ttv.Analyze(report.Transits, sc.Interval)
	if err != nil && runErr == nil {
		runErr = err
		report.Status = StatusError
		report.Error = err.Error()
	}
	report.Analysis = analysis

	elapsed := time.Since(start)
	report.DurationMS = elapsed.Milliseconds()
	metrics.RecordRun(report.Status, report.Steps, len(report.Transits), elapsed)

	if runErr != nil {
		log.Warn("simulation stopped early",
			"status", report.Status,
			"transits", len(report.Transits),
			"steps", report.Steps,
			"error", runErr,
		)
		return report, runErr
	}

	log.Info("simulation complete",
		"transits", len(report.Transits),
		"steps", report.Steps,
		"refine_iterations", report.Iterations,
		"mean_period_days", analysis.MeanPeriod/86400,
		"ttv_rms_seconds", analysis.RMS,
		"duration_ms", report.DurationMS,
	)
	return report, nil
}

// stepWarning reports when the driver step exceeds half the estimated central
// transit duration, where an entire transit could fall between two steps.
func stepWarning(sys system.System, watched system.Planet, step float64) string {
	dur := system.TransitDuration(propagation.SI.G(), sys.Star, watched)
	if dur <= 0 || step <= dur/2 {
		return ""
	}
	return fmt.Sprintf("step %.0fs exceeds half the %.0fs transit duration of %q", step, dur, watched.Name)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, transit.ErrNonConvergence):
		return StatusNonConvergence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusError
	}
}
