package transit

import (
	"errors"
	"fmt"
)

var (
	// ErrNonConvergence means the step ceiling was reached before the transit goal.
	ErrNonConvergence = errors.New("transit goal not reached within step ceiling")
	// ErrBracketInvariant means a refinement bracket did not straddle an ingress.
	ErrBracketInvariant = errors.New("refinement bracket does not contain an ingress")
)

// NonConvergenceError carries the transits found before the driver gave up.
type NonConvergenceError struct {
	Goal    int
	Steps   int
	Partial *Result
}

func (e *NonConvergenceError) Error() string {
	found := 0
	if e.Partial != nil {
		found = len(e.Partial.Transits)
	}
	return fmt.Sprintf("%s: found %d of %d transits in %d steps", ErrNonConvergence, found, e.Goal, e.Steps)
}

func (e *NonConvergenceError) Unwrap() error { return ErrNonConvergence }

// BracketError reports the detector state observed at each end of a bracket.
type BracketError struct {
	Start, End     float64
	AtStart, AtEnd bool
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("%s: [%g, %g] detector=(%t, %t), want (false, true)",
		ErrBracketInvariant, e.Start, e.End, e.AtStart, e.AtEnd)
}

func (e *BracketError) Unwrap() error { return ErrBracketInvariant }
