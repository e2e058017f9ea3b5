package system

import (
	"fmt"
	"time"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// Star is the central body. Radius is used for transit geometry only.
type Star struct {
	Name   string  `json:"name"`
	Mass   float64 `json:"mass_kg"`
	Radius float64 `json:"radius_m"`
}

// Planet orbits the star. SemiMajorAxis places it on an initial circular orbit;
// Radius may be zero for planets that are never watched for transits.
type Planet struct {
	Name          string  `json:"name"`
	Mass          float64 `json:"mass_kg"`
	SemiMajorAxis float64 `json:"semi_major_axis_m"`
	Radius        float64 `json:"radius_m"`
}

// System is a star with its planets. Planets[0] is the watched planet.
type System struct {
	Name    string   `json:"name"`
	Star    Star     `json:"star"`
	Planets []Planet `json:"planets"`
}

// Catalog is a named collection of systems from one source.
type Catalog struct {
	Source   string
	LoadedAt time.Time
	Systems  []System
}

// NewStar returns a star descriptor.
func NewStar(name string, mass, radius float64) Star {
	return Star{Name: name, Mass: mass, Radius: radius}
}

// NewPlanet returns a planet descriptor.
func NewPlanet(name string, mass, a, radius float64) Planet {
	return Planet{Name: name, Mass: mass, SemiMajorAxis: a, Radius: radius}
}

// Watched returns the planet whose transits are timed.
func (s System) Watched() Planet {
	if len(s.Planets) == 0 {
		return Planet{}
	}
	return s.Planets[0]
}

// Validate checks that the system can be simulated.
func (s System) Validate() error {
	if len(s.Planets) == 0 {
		return fmt.Errorf("system %q has no planets", s.Name)
	}
	if !(s.Star.Mass > 0) {
		return fmt.Errorf("system %q: star mass must be positive, got %g", s.Name, s.Star.Mass)
	}
	for i, p := range s.Planets {
		if p.Mass < 0 {
			return fmt.Errorf("system %q: planet %q has negative mass", s.Name, p.Name)
		}
		if !(p.SemiMajorAxis > 0) {
			return fmt.Errorf("system %q: planet %d (%q) needs a positive semi-major axis", s.Name, i, p.Name)
		}
	}
	if err := geometry.ValidateRadii(s.Star.Radius, s.Watched().Radius); err != nil {
		return fmt.Errorf("system %q: %w", s.Name, err)
	}
	return nil
}
