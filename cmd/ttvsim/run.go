package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tchin/transit-timing-variation/internal/plot"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/sink"
	"github.com/tchin/transit-timing-variation/internal/store"
)

type runFlags struct {
	systems     []string
	jupiterOnly bool
	transits    int
	interval    int
	flux        bool
	outDir      string
	asJSON      bool
	parallel    int
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one or more systems and report transit timing variations",
		Long: `Simulate each requested system until the first planet has transited the
requested number of times, then print the transit times and the changes in
period between them. Several systems run in parallel.

Examples:
  ttvsim run --transits 10
  ttvsim run --jupiter-only --transits 20 --interval 2 --flux
  ttvsim run --system solar --system jupiter --transits 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.systems, "system", []string{"solar"}, "system to simulate, repeatable")
	fl.BoolVar(&f.jupiterOnly, "jupiter-only", false, "simulate Earth with Jupiter only (same as --system jupiter)")
	fl.IntVarP(&f.transits, "transits", "n", 0, "number of transits to record (required)")
	fl.IntVar(&f.interval, "interval", 1, "comparison interval between periods")
	fl.BoolVar(&f.flux, "flux", false, "sample flux and write the phase-folded light curve")
	fl.StringVarP(&f.outDir, "out", "o", ".", "directory for PNG plots")
	fl.BoolVar(&f.asJSON, "json", false, "print reports as JSON")
	fl.IntVar(&f.parallel, "parallel", 0, "concurrent runs (default: number of CPUs)")
	cmd.MarkFlagRequired("transits")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	ctx := cmd.Context()
	if f.transits < 1 {
		return fmt.Errorf("--transits must be at least 1, got %d", f.transits)
	}
	if f.interval < 1 {
		return fmt.Errorf("--interval must be at least 1, got %d", f.interval)
	}
	if f.jupiterOnly {
		f.systems = []string{"jupiter"}
	}

	systems, _, _, err := a.loadSystems(ctx)
	if err != nil {
		return err
	}
	base := loadRunConfig(a.logger, a.v)

	scenarios := make([]runner.Scenario, 0, len(f.systems))
	for _, name := range f.systems {
		sc, err := runner.Resolve(systems, runner.Request{
			System:     name,
			Transits:   f.transits,
			Interval:   f.interval,
			SampleFlux: f.flux,
		}, base)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, sc)
	}

	var history *store.Store
	if path := loadStorePath(a.logger, a.v); path != "" {
		history, err = store.Open(path, a.logger)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	var influx *sink.Influx
	if cfg, ok := loadSinkConfig(a.logger, a.v); ok {
		influx, err = sink.NewInflux(cfg, a.logger)
		if err != nil {
			return err
		}
		defer influx.Close()
	}

	outcomes := runner.RunAll(ctx, scenarios, f.parallel, a.logger)

	var errs []error
	for _, o := range outcomes {
		if o.Report == nil {
			errs = append(errs, errors.New(o.Error))
			continue
		}
		if o.Error != "" {
			errs = append(errs, fmt.Errorf("%s: %s", o.Report.System, o.Error))
		}
		if history != nil {
			if err := history.Save(ctx, o.Report); err != nil {
				errs = append(errs, err)
			}
		}
		if influx != nil {
			if err := influx.Write(ctx, o.Report); err != nil {
				a.logger.Warn("influx export failed", "run_id", o.Report.ID, "error", err)
			}
		}
		if err := writePlots(f.outDir, o.Report, f.flux); err != nil {
			errs = append(errs, err)
		}
	}

	if f.asJSON {
		reports := make([]*runner.Report, 0, len(outcomes))
		for _, o := range outcomes {
			if o.Report != nil {
				reports = append(reports, o.Report)
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.Report != nil {
				printReport(os.Stdout, o.Report)
			}
		}
	}
	return errors.Join(errs...)
}

// writePlots renders the TTV series and, when flux was sampled, the light curve.
// Runs with too few transits are skipped.
func writePlots(dir string, r *runner.Report, flux bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	png, err := plot.Variations(r.Analysis.Variations, r.Interval, plot.Options{})
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "ttv-"+r.System+".png"), png, 0o644)
	}
	if err != nil && !errors.Is(err, plot.ErrNoData) {
		return fmt.Errorf("ttv plot for %s: %w", r.System, err)
	}

	if !flux {
		return nil
	}
	png, err = plot.LightCurve(r.Flux, r.Transits, r.StepTime, plot.Options{})
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "lightcurve-"+r.System+".png"), png, 0o644)
	}
	if err != nil && !errors.Is(err, plot.ErrNoData) {
		return fmt.Errorf("light curve for %s: %w", r.System, err)
	}
	return nil
}

func printReport(w io.Writer, r *runner.Report) {
	fmt.Fprintf(w, "system %s (%v), run %s: %s\n", r.System, r.Planets, r.ID, r.Status)
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  TRANSIT\tTIME (s)\tJULIAN DATE\tPERIOD (s)")
	for i, t := range r.Transits {
		period := ""
		if i > 0 && i <= len(r.Analysis.Periods) {
			period = fmt.Sprintf("%.1f", r.Analysis.Periods[i-1])
		}
		fmt.Fprintf(tw, "  %d\t%.1f\t%.6f\t%s\n", i, t, r.JulianDates[i], period)
	}
	tw.Flush()

	fmt.Fprintf(w, "  period changes (interval %d): %v\n", r.Interval, r.Analysis.Variations)
	fmt.Fprintf(w, "  mean period %.3f d, rms %.2f s, max %.2f s, %d steps in %d ms\n\n",
		r.Analysis.MeanPeriod/86400, r.Analysis.RMS, r.Analysis.MaxAbs, r.Steps, r.DurationMS)
}
