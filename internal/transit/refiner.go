package transit

import (
	"fmt"
	"math"
)

// DefaultTolerance is the ingress time tolerance in seconds.
const DefaultTolerance = 1.0

// Probe repositions the oracle to time t and reports whether the planet transits there.
type Probe func(t float64) (bool, error)

// Refinement is the narrowed ingress bracket. The detector is false at Start and
// true at End, and End-Start is within the tolerance.
type Refinement struct {
	Start      float64
	End        float64
	Iterations int
}

// Refiner narrows an ingress bracket by bisection.
type Refiner struct {
	Tolerance float64
}

// Refine bisects [t0, t1] until its width is at most the tolerance. The probe must
// report false at t0 and true at t1; anything else is a BracketError. The last
// probe is at a time no later than t1, so forward stepping can resume from there.
func (r Refiner) Refine(probe Probe, t0, t1 float64) (Refinement, error) {
	tol := r.Tolerance
	if tol <= 0 || math.IsNaN(tol) {
		return Refinement{}, fmt.Errorf("invalid tolerance %g", r.Tolerance)
	}
	if !(t1 > t0) {
		return Refinement{}, &BracketError{Start: t0, End: t1}
	}

	atEnd, err := probe(t1)
	if err != nil {
		return Refinement{}, fmt.Errorf("probe t=%g: %w", t1, err)
	}
	atStart, err := probe(t0)
	if err != nil {
		return Refinement{}, fmt.Errorf("probe t=%g: %w", t0, err)
	}
	if atStart || !atEnd {
		return Refinement{}, &BracketError{Start: t0, End: t1, AtStart: atStart, AtEnd: atEnd}
	}

	iterations := 0
	for t1-t0 > tol {
		mid := (t0 + t1) / 2
		in, err := probe(mid)
		if err != nil {
			return Refinement{}, fmt.Errorf("probe t=%g: %w", mid, err)
		}
		if in {
			t1 = mid
		} else {
			t0 = mid
		}
		iterations++
	}

	return Refinement{Start: t0, End: t1, Iterations: iterations}, nil
}

// MaxIterations returns the number of bisection steps needed to shrink a bracket
// of the given width below tol.
func MaxIterations(width, tol float64) int {
	if width <= tol || tol <= 0 {
		return 0
	}
	return int(math.Ceil(math.Log2(width / tol)))
}
