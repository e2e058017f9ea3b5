package runner

import (
	"fmt"

	"github.com/tchin/transit-timing-variation/internal/system"
)

// Request is the client-facing description of a run, as accepted by the HTTP API
// and the stream endpoint.
type Request struct {
	System     string  `json:"system"`
	Transits   int     `json:"transits"`
	Interval   int     `json:"interval,omitempty"`
	StepTime   float64 `json:"step_seconds,omitempty"`
	SampleFlux bool    `json:"sample_flux,omitempty"`
}

// Resolve looks up the requested system and overlays the request on base.
func Resolve(store *system.Store, req Request, base Scenario) (Scenario, error) {
	if req.Transits < 1 {
		return Scenario{}, fmt.Errorf("transits must be at least 1, got %d", req.Transits)
	}
	if req.Interval < 0 {
		return Scenario{}, fmt.Errorf("interval must not be negative, got %d", req.Interval)
	}
	if req.StepTime < 0 {
		return Scenario{}, fmt.Errorf("step_seconds must not be negative, got %g", req.StepTime)
	}

	sys, err := store.Lookup(req.System)
	if err != nil {
		return Scenario{}, err
	}

	sc := base
	sc.System = sys
	sc.Transits = req.Transits
	sc.SampleFlux = req.SampleFlux
	if req.Interval > 0 {
		sc.Interval = req.Interval
	}
	if req.StepTime > 0 {
		sc.StepTime = req.StepTime
	}
	return sc, nil
}
