package system

import "math"

// OrbitalPeriod returns the Keplerian period in seconds of a planet around the star.
func OrbitalPeriod(g float64, star Star, p Planet) float64 {
	mu := g * (star.Mass + p.Mass)
	if mu <= 0 || p.SemiMajorAxis <= 0 {
		return 0
	}
	a := p.SemiMajorAxis
	return 2 * math.Pi * math.Sqrt(a*a*a/mu)
}

// TransitDuration estimates the length in seconds of a central transit of p,
// from ingress to egress, on a circular orbit.
func TransitDuration(g float64, star Star, p Planet) float64 {
	period := OrbitalPeriod(g, star, p)
	if period == 0 {
		return 0
	}
	x := (star.Radius + p.Radius) / p.SemiMajorAxis
	if x >= 1 {
		return period / 2
	}
	return period / math.Pi * math.Asin(x)
}
