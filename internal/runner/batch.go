package runner

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Outcome pairs a scenario's report with its error, if any.
type Outcome struct {
	Report *Report `json:"report"`
	Error  string  `json:"error,omitempty"`
}

// RunAll executes independent scenarios concurrently, each with its own oracle.
// At most limit scenarios run at once (default: NumCPU). A failing scenario does
// not stop the others; its error is recorded in its outcome.
func RunAll(ctx context.Context, scenarios []Scenario, limit int, logger *slog.Logger) []Outcome {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	out := make([]Outcome, len(scenarios))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, sc := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = Outcome{Error: err.Error()}
				return nil
			}
			report, err := Run(ctx, sc, Options{}, logger)
			out[i] = Outcome{Report: report}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
