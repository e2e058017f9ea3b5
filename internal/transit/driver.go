// Package transit steps an orbital oracle forward in fixed increments, detects
// the ingress of the watched planet, refines each ingress by bisection and samples
// the light curve.
package transit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// Oracle advances the orbital state to an absolute time and reports body
// positions, star first and watched planet second. Calls must not overlap.
type Oracle interface {
	AdvanceTo(t float64) error
	Positions() []geometry.Vec3
}

const (
	DefaultStepTime        = 3600.0    // seconds between driver steps
	DefaultWarmupSteps     = 25        // steps before in-transit flux is sampled
	DefaultBaselineCadence = 25        // steps between out-of-transit baseline samples
	DefaultMaxSteps        = 2_000_000 // step ceiling
)

// Config holds the driver parameters.
type Config struct {
	StarRadius   float64
	PlanetRadius float64

	StartTime   float64 // absolute time of step 0 (default: 0)
	StepTime    float64 // seconds per step (default: 3600)
	Tolerance   float64 // ingress tolerance in seconds (default: 1)
	TransitGoal int     // number of transits to find
	MaxSteps    int     // step ceiling (default: 2,000,000)

	SampleFlux      bool // sample the flux while transiting
	WarmupSteps     int  // first step eligible for in-transit samples (default: 25)
	BaselineCadence int  // baseline sample every Nth step when not transiting (default: 25)

	// OnTransit, when set, is called synchronously after each ingress is recorded.
	OnTransit func(Event)
}

// Event describes one recorded ingress.
type Event struct {
	Index      int     `json:"index"`
	Time       float64 `json:"time"`
	Step       int     `json:"step"`
	Iterations int     `json:"iterations"`
}

// FluxSample is the relative brightness at a driver step.
type FluxSample struct {
	Step int     `json:"step"`
	Time float64 `json:"time"`
	Flux float64 `json:"flux"`
}

// Result is the output of a driver run.
type Result struct {
	Transits   []float64    `json:"transits"`
	Events     []Event      `json:"events"`
	Flux       []FluxSample `json:"flux"`
	Steps      int          `json:"steps"`
	Iterations int          `json:"refine_iterations"`
}

// Driver runs the NOT_TRANSITING / TRANSITING state machine over an oracle.
type Driver struct {
	oracle  Oracle
	config  Config
	refiner Refiner
	logger  *slog.Logger
}

// NewDriver validates cfg, fills defaults and returns a driver for the oracle.
func NewDriver(oracle Oracle, cfg Config, logger *slog.Logger) (*Driver, error) {
	if oracle == nil {
		return nil, errors.New("nil oracle")
	}
	if err := geometry.ValidateRadii(cfg.StarRadius, cfg.PlanetRadius); err != nil {
		return nil, err
	}

	if cfg.StepTime == 0 {
		cfg.StepTime = DefaultStepTime
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.WarmupSteps == 0 {
		cfg.WarmupSteps = DefaultWarmupSteps
	}
	if cfg.BaselineCadence == 0 {
		cfg.BaselineCadence = DefaultBaselineCadence
	}

	switch {
	case cfg.StepTime < 0:
		return nil, fmt.Errorf("step time must be positive, got %g", cfg.StepTime)
	case cfg.Tolerance < 0:
		return nil, fmt.Errorf("tolerance must be positive, got %g", cfg.Tolerance)
	case cfg.Tolerance >= cfg.StepTime:
		return nil, fmt.Errorf("tolerance %g must be smaller than step time %g", cfg.Tolerance, cfg.StepTime)
	case cfg.TransitGoal < 0:
		return nil, fmt.Errorf("transit goal must not be negative, got %d", cfg.TransitGoal)
	case cfg.MaxSteps < 0:
		return nil, fmt.Errorf("max steps must be positive, got %d", cfg.MaxSteps)
	case cfg.WarmupSteps < 0 || cfg.BaselineCadence < 0:
		return nil, errors.New("warm-up and baseline cadence must not be negative")
	}

	return &Driver{
		oracle:  oracle,
		config:  cfg,
		refiner: Refiner{Tolerance: cfg.Tolerance},
		logger:  logger,
	}, nil
}

// Config returns the effective configuration with defaults applied.
func (d *Driver) Config() Config { return d.config }

// Run steps the oracle until TransitGoal ingresses have been recorded.
//
// Reaching MaxSteps first returns a *NonConvergenceError holding the partial
// result. Cancelling ctx stops the loop and returns the partial result together
// with the context error.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	cfg := d.config
	res := &Result{}

	if err := d.oracle.AdvanceTo(cfg.StartTime); err != nil {
		return res, fmt.Errorf("advance to start: %w", err)
	}
	inTransit := d.detect()

	d.logger.Debug("transit driver starting",
		"goal", cfg.TransitGoal,
		"step_seconds", cfg.StepTime,
		"max_steps", cfg.MaxSteps,
		"initially_transiting", inTransit,
	)

	probe := func(t float64) (bool, error) {
		if err := d.oracle.AdvanceTo(t); err != nil {
			return false, err
		}
		return d.detect(), nil
	}

	step := 0
	for len(res.Transits) < cfg.TransitGoal {
		if step >= cfg.MaxSteps {
			return res, &NonConvergenceError{Goal: cfg.TransitGoal, Steps: step, Partial: res}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		step++
		res.Steps = step
		t := cfg.StartTime + float64(step)*cfg.StepTime
		if err := d.oracle.AdvanceTo(t); err != nil {
			return res, fmt.Errorf("advance to t=%g: %w", t, err)
		}

		now := d.detect()
		if now {
			if cfg.SampleFlux && step >= cfg.WarmupSteps {
				res.Flux = append(res.Flux, FluxSample{
					Step: step,
					Time: t,
					Flux: geometry.Flux(d.oracle.Positions(), cfg.StarRadius, cfg.PlanetRadius),
				})
			}
			if !inTransit {
				if err := d.recordIngress(res, probe, step, t); err != nil {
					return res, err
				}
			}
		} else if step%cfg.BaselineCadence == 0 {
			res.Flux = append(res.Flux, FluxSample{Step: step, Time: t, Flux: 1.0})
		}
		inTransit = now
	}

	d.logger.Debug("transit driver finished",
		"transits", len(res.Transits),
		"steps", res.Steps,
		"refine_iterations", res.Iterations,
	)
	return res, nil
}

// recordIngress refines the rising edge found at step and appends it.
func (d *Driver) recordIngress(res *Result, probe Probe, step int, t float64) error {
	ref, err := d.refiner.Refine(probe, t-d.config.StepTime, t)
	if err != nil {
		return fmt.Errorf("refine ingress at step %d: %w", step, err)
	}

	ev := Event{
		Index:      len(res.Transits),
		Time:       ref.Start,
		Step:       step,
		Iterations: ref.Iterations,
	}
	res.Transits = append(res.Transits, ref.Start)
	res.Events = append(res.Events, ev)
	res.Iterations += ref.Iterations

	d.logger.Debug("transit recorded",
		"index", ev.Index,
		"time_seconds", ev.Time,
		"step", step,
		"iterations", ev.Iterations,
	)

	if d.config.OnTransit != nil {
		d.config.OnTransit(ev)
	}
	return nil
}

func (d *Driver) detect() bool {
	return geometry.IsTransiting(d.oracle.Positions(), d.config.StarRadius, d.config.PlanetRadius)
}
