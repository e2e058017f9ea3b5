package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sunRadius   = 6.957e8
	earthRadius = 6.3781e6
)

func TestIsTransiting(t *testing.T) {
	tests := []struct {
		name      string
		positions []Vec3
		want      bool
	}{
		{
			name:      "planet in front, aligned",
			positions: []Vec3{{0, 0, 0}, {1.5e11, 0, 0}},
			want:      true,
		},
		{
			name:      "planet behind star",
			positions: []Vec3{{0, 0, 0}, {-1.5e11, 0, 0}},
			want:      false,
		},
		{
			name:      "in front but separated in y",
			positions: []Vec3{{0, 0, 0}, {1.5e11, 1e9, 0}},
			want:      false,
		},
		{
			name:      "in front, offset in z within contact",
			positions: []Vec3{{0, 0, 0}, {1.5e11, 0, sunRadius}},
			want:      true,
		},
		{
			name:      "exactly at contact is not transiting",
			positions: []Vec3{{0, 0, 0}, {1.5e11, sunRadius + earthRadius, 0}},
			want:      false,
		},
		{
			name:      "star displaced from origin",
			positions: []Vec3{{1e9, 2e9, 0}, {1.5e11, 2e9, 0}},
			want:      true,
		},
		{
			name:      "single body",
			positions: []Vec3{{0, 0, 0}},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransiting(tt.positions, sunRadius, earthRadius))
		})
	}
}

func TestValidateRadii(t *testing.T) {
	tests := []struct {
		name    string
		rStar   float64
		rPlanet float64
		wantErr bool
	}{
		{"sun and earth", sunRadius, earthRadius, false},
		{"point-mass planet", sunRadius, 0, false},
		{"zero star", 0, earthRadius, true},
		{"negative star", -1, earthRadius, true},
		{"negative planet", sunRadius, -1, true},
		{"nan planet", sunRadius, math.NaN(), true},
		{"infinite star", math.Inf(1), earthRadius, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRadii(tt.rStar, tt.rPlanet)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrGeometry))
			var gerr *GeometryError
			assert.True(t, errors.As(err, &gerr))
		})
	}
}

func TestOverlapTangentInside(t *testing.T) {
	radii := [][2]float64{
		{sunRadius, earthRadius},
		{10, 1},
		{5, 4.999},
		{1, 0.5},
	}
	for _, r := range radii {
		r1, r2 := r[0], r[1]
		want := math.Pi * r2 * r2
		got := Overlap(r1-r2, r1, r2)
		assert.InDelta(t, want, got, want*1e-6, "r1=%g r2=%g", r1, r2)
	}
}

func TestOverlapBounds(t *testing.T) {
	r1, r2 := 3.0, 2.0
	assert.Equal(t, 0.0, Overlap(r1+r2, r1, r2))
	assert.Equal(t, 0.0, Overlap(10, r1, r2))
	assert.InDelta(t, math.Pi*r2*r2, Overlap(0, r1, r2), 1e-12)
	assert.Equal(t, 0.0, Overlap(1, r1, 0))

	smaller := math.Pi * r2 * r2
	for d := 0.01; d < r1+r2; d += 0.01 {
		a := Overlap(d, r1, r2)
		assert.False(t, math.IsNaN(a), "NaN at d=%g", d)
		assert.LessOrEqual(t, a, smaller+1e-12)
		assert.GreaterOrEqual(t, a, 0.0)
	}
}

func TestFluxAtEqualRadiiCentred(t *testing.T) {
	// Fully-inside policy: 1 - (π r²)/(π r²) = 0.
	assert.Equal(t, 0.0, FluxAt(0, 2, 2))
}

func TestFluxAtPlanetLargerThanStar(t *testing.T) {
	assert.Equal(t, 0.0, FluxAt(0, 1, 3))
	assert.Equal(t, 0.0, FluxAt(1.5, 1, 3))
}

func TestFluxAtFullyInside(t *testing.T) {
	want := 1 - (earthRadius*earthRadius)/(sunRadius*sunRadius)
	assert.InDelta(t, want, FluxAt(0, sunRadius, earthRadius), 1e-15)
	assert.InDelta(t, want, FluxAt(sunRadius-earthRadius, sunRadius, earthRadius), 1e-12)
}

func TestFluxAtNoOverlap(t *testing.T) {
	assert.Equal(t, 1.0, FluxAt(sunRadius+earthRadius, sunRadius, earthRadius))
	assert.Equal(t, 1.0, FluxAt(1e12, sunRadius, earthRadius))
	assert.Equal(t, 1.0, FluxAt(0, sunRadius, 0))
}

func TestFluxMonotonicInSeparation(t *testing.T) {
	cases := [][2]float64{
		{sunRadius, earthRadius},
		{1, 0.3},
		{1, 1},
		{1, 2},
	}
	for _, c := range cases {
		rs, rp := c[0], c[1]
		limit := (rs + rp) * 1.1
		prev := FluxAt(0, rs, rp)
		for i := 1; i <= 2000; i++ {
			d := limit * float64(i) / 2000
			f := FluxAt(d, rs, rp)
			require.GreaterOrEqual(t, f, prev-1e-12, "rs=%g rp=%g d=%g", rs, rp, d)
			require.GreaterOrEqual(t, f, 0.0)
			require.LessOrEqual(t, f, 1.0)
			prev = f
		}
	}
}

func TestFluxFromPositions(t *testing.T) {
	positions := []Vec3{{0, 0, 0}, {1.5e11, 0, 0}}
	want := 1 - (earthRadius*earthRadius)/(sunRadius*sunRadius)
	assert.InDelta(t, want, Flux(positions, sunRadius, earthRadius), 1e-15)

	// Partial overlap near ingress lies strictly between full depth and 1.
	edge := []Vec3{{0, 0, 0}, {1.5e11, sunRadius, 0}}
	f := Flux(edge, sunRadius, earthRadius)
	assert.Greater(t, f, want)
	assert.Less(t, f, 1.0)

	assert.Equal(t, 1.0, Flux(positions[:1], sunRadius, earthRadius))
}

func TestProjectedSeparationIgnoresLineOfSight(t *testing.T) {
	a := Vec3{X: 0, Y: 3, Z: 0}
	b := Vec3{X: 1e9, Y: 0, Z: 4}
	assert.InDelta(t, 5.0, ProjectedSeparation(a, b), 1e-12)
}
