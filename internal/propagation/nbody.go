package propagation

import (
	"errors"
	"fmt"
	"math"

	"github.com/tchin/transit-timing-variation/internal/geometry"
)

// NBody is a direct-summation gravitational integrator used as the orbital oracle.
//
// It uses a kick-drift-kick leapfrog with a fixed base timestep. AdvanceTo lands
// exactly on the requested time with a final partial step, and integrates with
// negative steps when asked to move backwards, which the scheme supports because it
// is time-reversible.
//
// NBody is not safe for concurrent use.
type NBody struct {
	g        float64
	dt       float64
	units    UnitSystem
	t        float64
	bodies   []particle
	accValid bool
}

// NewNBody creates an empty simulation at time zero.
func NewNBody(cfg Config) (*NBody, error) {
	dt := cfg.Timestep
	if dt == 0 {
		dt = DefaultTimestep
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("invalid timestep %g", cfg.Timestep)
	}
	return &NBody{
		g:     cfg.Units.G(),
		dt:    dt,
		units: cfg.Units,
	}, nil
}

// AddBody appends a body. The first body is the star; later bodies are planets in
// the order the caller wants them indexed.
func (s *NBody) AddBody(b Body) error {
	if b.Mass < 0 || math.IsNaN(b.Mass) {
		return fmt.Errorf("body %d: invalid mass %g", len(s.bodies), b.Mass)
	}

	p := particle{mass: b.Mass, pos: b.Position, vel: b.Velocity}
	if b.SemiMajorAxis > 0 {
		if len(s.bodies) == 0 {
			return errors.New("first body cannot be placed by semi-major axis")
		}
		m, com, comVel := s.centreOfMass()
		mu := s.g * (m + b.Mass)
		if mu <= 0 {
			return fmt.Errorf("body %d: no mass to orbit", len(s.bodies))
		}
		speed := math.Sqrt(mu / b.SemiMajorAxis)
		p.pos = com.Add(geometry.Vec3{X: b.SemiMajorAxis})
		p.vel = comVel.Add(geometry.Vec3{Y: speed})
	}

	s.bodies = append(s.bodies, p)
	s.accValid = false
	return nil
}

// Recenter shifts positions and velocities into the centre-of-mass frame.
func (s *NBody) Recenter() {
	m, com, comVel := s.centreOfMass()
	if m == 0 {
		return
	}
	for i := range s.bodies {
		s.bodies[i].pos = s.bodies[i].pos.Sub(com)
		s.bodies[i].vel = s.bodies[i].vel.Sub(comVel)
	}
	s.accValid = false
}

// AdvanceTo integrates forward or backward until the simulation time equals t.
func (s *NBody) AdvanceTo(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("invalid target time %g", t)
	}
	if len(s.bodies) == 0 {
		s.t = t
		return nil
	}
	if !s.accValid {
		s.computeAccelerations()
	}

	for s.t != t {
		remaining := t - s.t
		if math.Abs(remaining) <= s.dt {
			s.step(remaining)
			s.t = t
			break
		}
		h := math.Copysign(s.dt, remaining)
		s.step(h)
		s.t += h
	}
	return nil
}

// Positions returns a copy of the body positions, index-aligned with AddBody order.
func (s *NBody) Positions() []geometry.Vec3 {
	out := make([]geometry.Vec3, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = b.pos
	}
	return out
}

// Velocities returns a copy of the body velocities.
func (s *NBody) Velocities() []geometry.Vec3 {
	out := make([]geometry.Vec3, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = b.vel
	}
	return out
}

// Time returns the current simulation time.
func (s *NBody) Time() float64 { return s.t }

// Len returns the number of bodies.
func (s *NBody) Len() int { return len(s.bodies) }

// Units returns the unit system the simulation integrates in.
func (s *NBody) Units() UnitSystem { return s.units }

// Energy returns the total mechanical energy. Useful for checking integration drift.
func (s *NBody) Energy() float64 {
	var kinetic, potential float64
	for i, a := range s.bodies {
		v := a.vel.Norm()
		kinetic += 0.5 * a.mass * v * v
		for j := i + 1; j < len(s.bodies); j++ {
			b := s.bodies[j]
			r := a.pos.Sub(b.pos).Norm()
			if r > 0 {
				potential -= s.g * a.mass * b.mass / r
			}
		}
	}
	return kinetic + potential
}

// step performs one kick-drift-kick leapfrog step of size h. Accelerations must be
// valid on entry and are valid on return.
func (s *NBody) step(h float64) {
	half := 0.5 * h
	for i := range s.bodies {
		b := &s.bodies[i]
		b.vel = b.vel.Add(b.acc.Scale(half))
		b.pos = b.pos.Add(b.vel.Scale(h))
	}
	s.computeAccelerations()
	for i := range s.bodies {
		b := &s.bodies[i]
		b.vel = b.vel.Add(b.acc.Scale(half))
	}
}

func (s *NBody) computeAccelerations() {
	for i := range s.bodies {
		s.bodies[i].acc = geometry.Vec3{}
	}
	for i := 0; i < len(s.bodies); i++ {
		a := &s.bodies[i]
		for j := i + 1; j < len(s.bodies); j++ {
			b := &s.bodies[j]
			d := b.pos.Sub(a.pos)
			r2 := d.X*d.X + d.Y*d.Y + d.Z*d.Z
			if r2 == 0 {
				continue
			}
			inv := s.g / (r2 * math.Sqrt(r2))
			a.acc = a.acc.Add(d.Scale(b.mass * inv))
			b.acc = b.acc.Sub(d.Scale(a.mass * inv))
		}
	}
	s.accValid = true
}

func (s *NBody) centreOfMass() (float64, geometry.Vec3, geometry.Vec3) {
	var m float64
	var pos, vel geometry.Vec3
	for _, b := range s.bodies {
		m += b.mass
		pos = pos.Add(b.pos.Scale(b.mass))
		vel = vel.Add(b.vel.Scale(b.mass))
	}
	if m == 0 {
		return 0, geometry.Vec3{}, geometry.Vec3{}
	}
	return m, pos.Scale(1 / m), vel.Scale(1 / m)
}
