package propagation

import (
	"fmt"
	"math"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// UnitSystem selects the units the oracle integrates in.
type UnitSystem int

const (
	// SI integrates in seconds, meters and kilograms.
	SI UnitSystem = iota
	// Astronomical integrates in years, astronomical units and solar masses.
	Astronomical
)

// G returns the gravitational constant expressed in the unit system.
func (u UnitSystem) G() float64 {
	switch u {
	case Astronomical:
		return 4 * math.Pi * math.Pi
	default:
		return 6.67430e-11
	}
}

func (u UnitSystem) String() string {
	switch u {
	case SI:
		return "s,m,kg"
	case Astronomical:
		return "yr,AU,Msun"
	default:
		return fmt.Sprintf("UnitSystem(%d)", int(u))
	}
}

// Config holds the oracle configuration.
type Config struct {
	Units    UnitSystem // default SI
	Timestep float64    // base integration step in time units (default: 100)
}

// DefaultTimestep is the base integration step used when Config.Timestep is zero.
const DefaultTimestep = 100.0

// Body is the initial description of one body handed to AddBody.
//
// When SemiMajorAxis is positive the body is placed on a circular orbit around the
// centre of mass of the bodies added before it, and Position/Velocity are ignored.
// Otherwise Position and Velocity are used as given.
type Body struct {
	Mass          float64
	SemiMajorAxis float64
	Position      geometry.Vec3
	Velocity      geometry.Vec3
}

// particle is the mutable integration state of one body.
type particle struct {
	mass float64
	pos  geometry.Vec3
	vel  geometry.Vec3
	acc  geometry.Vec3
}
