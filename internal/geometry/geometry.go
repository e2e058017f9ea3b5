// Package geometry holds the pure transit geometry: the line-of-sight transit
// test and the circular-disk flux model.
//
// The observer looks along the +x axis. A planet is in front of its star when its
// x coordinate is not behind the star's; the projected separation is measured in
// the y-z plane.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Vec3 is a position in the simulation frame (meters).
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// ErrGeometry is the sentinel wrapped by every GeometryError.
var ErrGeometry = errors.New("invalid transit geometry")

// GeometryError reports a radius that the flux model cannot work with.
type GeometryError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s: %s=%g %s", ErrGeometry, e.Field, e.Value, e.Reason)
}

func (e *GeometryError) Unwrap() error { return ErrGeometry }

// ValidateRadii checks the radii once at configuration time. The star must have a
// positive radius; the planet radius may be zero (point mass).
func ValidateRadii(rStar, rPlanet float64) error {
	switch {
	case math.IsNaN(rStar) || math.IsInf(rStar, 0):
		return &GeometryError{Field: "star_radius", Value: rStar, Reason: "must be finite"}
	case rStar <= 0:
		return &GeometryError{Field: "star_radius", Value: rStar, Reason: "must be positive"}
	case math.IsNaN(rPlanet) || math.IsInf(rPlanet, 0):
		return &GeometryError{Field: "planet_radius", Value: rPlanet, Reason: "must be finite"}
	case rPlanet < 0:
		return &GeometryError{Field: "planet_radius", Value: rPlanet, Reason: "must not be negative"}
	}
	return nil
}

// ProjectedSeparation returns the distance between star and planet in the plane
// perpendicular to the line of sight.
func ProjectedSeparation(star, planet Vec3) float64 {
	return math.Sqrt(projectedSeparation2(star, planet))
}

func projectedSeparation2(star, planet Vec3) float64 {
	dy := star.Y - planet.Y
	dz := star.Z - planet.Z
	return dy*dy + dz*dz
}

// IsTransiting reports whether the watched planet (index 1) overlaps the star
// (index 0) as seen along the line of sight. A planet behind the star never transits.
func IsTransiting(positions []Vec3, rStar, rPlanet float64) bool {
	if len(positions) < 2 {
		return false
	}
	star, planet := positions[0], positions[1]
	if planet.X < star.X {
		return false
	}
	r := rStar + rPlanet
	return projectedSeparation2(star, planet) < r*r
}
