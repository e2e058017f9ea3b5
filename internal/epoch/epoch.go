// Package epoch maps simulation seconds onto calendar time and Julian dates.
package epoch

import (
	"math"
	"time"
)

// J2000 is the Julian Date of 2000-01-01 12:00:00.
const J2000 = 2451545.0

const secondsPerDay = 86400.0

// J2000Time is the J2000.0 epoch as a UTC time.
var J2000Time = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// unixEpochJD is the Julian Date of 1970-01-01 00:00:00 UTC.
const unixEpochJD = 2440587.5

// JulianDate converts an instant to a Julian Date (proleptic Gregorian, UTC).
func JulianDate(t time.Time) float64 {
	days := float64(t.Unix()) / secondsPerDay
	return unixEpochJD + days + float64(t.Nanosecond())/(secondsPerDay*1e9)
}

// FromJulian converts a Julian Date to UTC, rounded to the millisecond.
func FromJulian(jd float64) time.Time {
	ms := math.Round((jd - J2000) * secondsPerDay * 1000)
	return J2000Time.Add(time.Duration(ms) * time.Millisecond)
}

// Epoch anchors simulation time zero to a calendar instant.
type Epoch struct {
	Origin time.Time
}

// New returns an epoch with the given origin, or J2000 when origin is zero.
func New(origin time.Time) Epoch {
	if origin.IsZero() {
		origin = J2000Time
	}
	return Epoch{Origin: origin.UTC()}
}

// Time returns the calendar time of a simulation time in seconds.
func (e Epoch) Time(seconds float64) time.Time {
	return e.Origin.Add(time.Duration(math.Round(seconds*1e3)) * time.Millisecond)
}

// Julian returns the Julian Date of a simulation time in seconds.
func (e Epoch) Julian(seconds float64) float64 {
	return JulianDate(e.Origin) + seconds/secondsPerDay
}

// Julians converts a series of simulation times.
func (e Epoch) Julians(seconds []float64) []float64 {
	base := JulianDate(e.Origin)
	out := make([]float64, len(seconds))
	for i, s := range seconds {
		out[i] = base + s/secondsPerDay
	}
	return out
}

// Seconds returns the simulation time of a calendar instant.
func (e Epoch) Seconds(t time.Time) float64 {
	return t.Sub(e.Origin).Seconds()
}
