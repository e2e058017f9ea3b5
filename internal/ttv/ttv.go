// Package ttv turns a series of transit times into periods and transit timing
// variations.
package ttv

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInterval is returned for a sampling interval below 1.
	ErrInvalidInterval = errors.New("sampling interval must be at least 1")
	// ErrUnordered is returned when transit times are not strictly increasing.
	ErrUnordered = errors.New("transit times must be strictly increasing")
)

// Analysis is the full breakdown of a transit time series.
type Analysis struct {
	Interval   int       `json:"interval"`
	Periods    []float64 `json:"periods"`
	Sampled    []float64 `json:"sampled_periods"`
	Variations []float64 `json:"variations"`
	MeanPeriod float64   `json:"mean_period"`
	RMS        float64   `json:"rms"`
	MaxAbs     float64   `json:"max_abs"`
}

// Periods returns the differences between consecutive transit times.
func Periods(times []float64) []float64 {
	return diff(times)
}

// Subsample keeps every interval-th period starting with the first.
func Subsample(periods []float64, interval int) []float64 {
	if interval <= 1 {
		out := make([]float64, len(periods))
		copy(out, periods)
		return out
	}
	out := make([]float64, 0, (len(periods)+interval-1)/interval)
	for i := 0; i < len(periods); i += interval {
		out = append(out, periods[i])
	}
	return out
}

// Compute returns the transit timing variations: the differences between
// consecutive sub-sampled periods. Fewer than three transits give an empty slice.
func Compute(times []float64, interval int) ([]float64, error) {
	a, err := Analyze(times, interval)
	if err != nil {
		return nil, err
	}
	return a.Variations, nil
}

// Analyze computes periods, sub-sampled periods, variations and summary statistics.
func Analyze(times []float64, interval int) (Analysis, error) {
	if interval < 1 {
		return Analysis{}, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return Analysis{}, fmt.Errorf("%w: index %d (%g after %g)", ErrUnordered, i, times[i], times[i-1])
		}
	}

	periods := Periods(times)
	sampled := Subsample(periods, interval)
	variations := diff(sampled)

	a := Analysis{
		Interval:   interval,
		Periods:    periods,
		Sampled:    sampled,
		Variations: variations,
	}
	if len(periods) > 0 {
		a.MeanPeriod = (times[len(times)-1] - times[0]) / float64(len(periods))
	}
	if len(variations) > 0 {
		var sum2 float64
		for _, v := range variations {
			sum2 += v * v
			a.MaxAbs = math.Max(a.MaxAbs, math.Abs(v))
		}
		a.RMS = math.Sqrt(sum2 / float64(len(variations)))
	}
	return a, nil
}

func diff(xs []float64) []float64 {
	if len(xs) < 2 {
		return []float64{}
	}
	out := make([]float64, len(xs)-1)
	for i := range out {
		out[i] = xs[i+1] - xs[i]
	}
	return out
}
