package propagation

import (
	"math"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// CircularOrbit describes uniform circular motion in the x-y plane around a star
// fixed at the origin. At t = 0 a body with zero Phase sits on the +x axis.
type CircularOrbit struct {
	Radius float64 // orbit radius
	Period float64 // orbital period, same time unit as AdvanceTo
	Phase  float64 // angle at t = 0 (radians)
	Z      float64 // constant offset along z, an impact parameter in length units
}

// Circular is an analytic oracle: positions are a closed-form function of time, so
// any time can be queried in any order. It has no mutual perturbations and is
// meant for tests and diagnostics.
type Circular struct {
	t      float64
	orbits []CircularOrbit
}

// NewCircular creates an analytic oracle with the star at index 0 and one body
// per orbit after it.
func NewCircular(orbits ...CircularOrbit) *Circular {
	o := make([]CircularOrbit, len(orbits))
	copy(o, orbits)
	return &Circular{orbits: o}
}

// AdvanceTo moves the oracle clock to t.
func (c *Circular) AdvanceTo(t float64) error {
	c.t = t
	return nil
}

// Time returns the current oracle time.
func (c *Circular) Time() float64 { return c.t }

// Positions returns the star followed by each orbiting body.
func (c *Circular) Positions() []geometry.Vec3 {
	out := make([]geometry.Vec3, 1+len(c.orbits))
	for i, o := range c.orbits {
		theta := o.Phase
		if o.Period != 0 {
			theta += 2 * math.Pi * c.t / o.Period
		}
		out[i+1] = geometry.Vec3{
			X: o.Radius * math.Cos(theta),
			Y: o.Radius * math.Sin(theta),
			Z: o.Z,
		}
	}
	return out
}

// KeplerPeriod returns the period of a circular orbit of radius a around a
// central mass m in the given unit system.
func KeplerPeriod(units UnitSystem, m, a float64) float64 {
	if m <= 0 || a <= 0 {
		return 0
	}
	return 2 * math.Pi * math.Sqrt(a*a*a/(units.G()*m))
}
