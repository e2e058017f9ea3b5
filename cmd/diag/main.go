// Command diag compares the transit driver against closed-form answers: the
// analytic circular oracle, where ingress times are known exactly, and a
// two-body N-body run, where the period follows Kepler's third law.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/tchin/transit-timing-variation/internal/propagation"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/system"
	"github.com/tchin/transit-timing-variation/internal/transit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	star := system.Sun()
	earth := system.Earth()
	g := propagation.SI.G()
	period := propagation.KeplerPeriod(propagation.SI, star.Mass, earth.SemiMajorAxis)
	fmt.Printf("Sun-Earth Kepler period: %.1f s (%.4f d)\n", period, period/86400)

	// Analytic oracle: ingress k happens at k*P minus the arc to first contact.
	oracle := propagation.NewCircular(propagation.CircularOrbit{Radius: earth.SemiMajorAxis, Period: period})
	d, err := transit.NewDriver(oracle, transit.Config{
		StarRadius:   star.Radius,
		PlanetRadius: earth.Radius,
		TransitGoal:  3,
	}, logger)
	if err != nil {
		fmt.Println("ERROR creating driver:", err)
		os.Exit(1)
	}
	res, err := d.Run(ctx)
	if err != nil {
		fmt.Println("ERROR running circular oracle:", err)
		os.Exit(1)
	}
	offset := math.Asin((star.Radius+earth.Radius)/earth.SemiMajorAxis) / (2 * math.Pi) * period
	fmt.Printf("\nCircular oracle, %d steps, %d bisection iterations\n", res.Steps, res.Iterations)
	for i, t := range res.Transits {
		want := float64(i+1)*period - offset
		fmt.Printf("  transit %d: t=%.1fs analytic=%.1fs error=%.3fs\n", i, t, want, t-want)
	}

	// N-body with Earth alone: no perturbers, so every period is the Kepler period
	// of the reduced two-body problem.
	sys := system.System{Name: "sun-earth", Star: star, Planets: []system.Planet{earth}}
	report, err := runner.Run(ctx, runner.Scenario{System: sys, Transits: 4}, runner.Options{}, logger)
	if err != nil {
		fmt.Println("ERROR running N-body:", err)
		os.Exit(1)
	}
	twoBody := 2 * math.Pi * math.Sqrt(math.Pow(earth.SemiMajorAxis, 3)/(g*(star.Mass+earth.Mass)))
	fmt.Printf("\nN-body two-body run %s, %d steps in %d ms\n", report.ID, report.Steps, report.DurationMS)
	for i, p := range report.Analysis.Periods {
		fmt.Printf("  period %d: %.1fs two-body=%.1fs error=%.1fs\n", i, p, twoBody, p-twoBody)
	}
	fmt.Printf("  ttv: %v (rms %.3fs)\n", report.Analysis.Variations, report.Analysis.RMS)

	// Energy drift of the leapfrog over one orbit.
	sim, err := runner.BuildOracle(sys, 0)
	if err != nil {
		fmt.Println("ERROR building oracle:", err)
		os.Exit(1)
	}
	e0 := sim.Energy()
	if err := sim.AdvanceTo(period); err != nil {
		fmt.Println("ERROR advancing oracle:", err)
		os.Exit(1)
	}
	fmt.Printf("\nRelative energy drift over one orbit: %.3e\n", (sim.Energy()-e0)/math.Abs(e0))
}
