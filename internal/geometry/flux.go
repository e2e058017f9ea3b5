package geometry

import "math"

// Flux returns the relative brightness of the star (index 0) with the watched
// planet (index 1) in front of it. 1.0 means unobscured.
//
// Flux does not repeat the depth test; callers sample it while IsTransiting holds.
func Flux(positions []Vec3, rStar, rPlanet float64) float64 {
	if len(positions) < 2 {
		return 1.0
	}
	d := ProjectedSeparation(positions[0], positions[1])
	return FluxAt(d, rStar, rPlanet)
}

// FluxAt returns the relative brightness for a projected separation d.
//
// A planet disk entirely inside the stellar disk (d <= rStar-rPlanet, which
// includes d = 0 for equal radii) hides π·rPlanet². A planet larger than the star
// that covers it completely hides the whole stellar disk, so flux floors at 0.
func FluxAt(d, rStar, rPlanet float64) float64 {
	starArea := math.Pi * rStar * rStar
	if starArea == 0 {
		return 1.0
	}
	f := 1.0 - obscuredArea(d, rStar, rPlanet)/starArea
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func obscuredArea(d, rStar, rPlanet float64) float64 {
	d = math.Abs(d)
	switch {
	case rPlanet == 0 || d >= rStar+rPlanet:
		return 0
	case d <= rStar-rPlanet:
		return math.Pi * rPlanet * rPlanet
	case d <= rPlanet-rStar:
		return math.Pi * rStar * rStar
	}
	return Overlap(d, rStar, rPlanet)
}

// Overlap returns the lens-shaped intersection area of two circles of radii r1
// and r2 whose centres are d apart. Cosine arguments are clamped to [-1, 1] so
// near-tangent configurations do not produce NaN, and the result never exceeds
// the smaller disk.
func Overlap(d, r1, r2 float64) float64 {
	small := math.Min(r1, r2)
	if small <= 0 {
		return 0
	}
	maxArea := math.Pi * small * small
	if d <= 0 {
		return maxArea
	}
	if d >= r1+r2 {
		return 0
	}

	alpha := math.Acos(clamp((r1*r1+d*d-r2*r2)/(2*r1*d), -1, 1))
	beta := math.Acos(clamp((r2*r2+d*d-r1*r1)/(2*r2*d), -1, 1))

	area := alpha*r1*r1 + beta*r2*r2 -
		0.5*r1*r1*math.Sin(2*alpha) -
		0.5*r2*r2*math.Sin(2*beta)

	return clamp(area, 0, maxArea)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
