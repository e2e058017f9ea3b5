package epoch

import (
	"math"
	"testing"
	"time"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want float64
	}{
		{"J2000", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"1999 midnight", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 2451179.5},
		{"leap day 2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 2460369.5},
		{"sputnik", time.Date(1957, 10, 4, 19, 28, 34, 0, time.UTC), 2436116.3115},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.t)
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("JulianDate(%v) = %.6f, want %.6f", tt.t, got, tt.want)
			}
		})
	}
}

func TestFromJulianRoundTrip(t *testing.T) {
	orig := time.Date(2031, 7, 14, 3, 25, 41, 0, time.UTC)
	got := FromJulian(JulianDate(orig))
	if d := got.Sub(orig); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("round trip drifted by %v", d)
	}
}

func TestEpoch(t *testing.T) {
	e := New(time.Time{})
	if !e.Origin.Equal(J2000Time) {
		t.Fatalf("zero origin should default to J2000, got %v", e.Origin)
	}
	if got := e.Julian(86400); math.Abs(got-(J2000+1)) > 1e-9 {
		t.Errorf("Julian(1 day) = %f", got)
	}
	if got := e.Time(3600); !got.Equal(J2000Time.Add(time.Hour)) {
		t.Errorf("Time(3600) = %v", got)
	}
	if got := e.Seconds(J2000Time.Add(90 * time.Minute)); got != 5400 {
		t.Errorf("Seconds = %f, want 5400", got)
	}

	js := e.Julians([]float64{0, 43200})
	if len(js) != 2 || math.Abs(js[1]-js[0]-0.5) > 1e-9 {
		t.Errorf("Julians = %v", js)
	}
}
