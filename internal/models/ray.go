package models

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Ray represents a single line probe through the density field
type Ray struct {
	// Origin is the starting point of the ray in field coordinates
	Origin r2.Vec

	// Direction is the unit direction the ray travels in
	Direction r2.Vec

	// Length is the nominal traversal length. It is informational only;
	// the tracer derives the real traversal from the field bounds.
	Length int
}

// NewRay creates a ray with the given origin, direction and nominal length
func NewRay(origin, direction r2.Vec, length int) Ray {
	return Ray{Origin: origin, Direction: direction, Length: length}
}

// At returns the point origin + t*direction
func (r Ray) At(t float64) r2.Vec {
	return r2.Add(r.Origin, r2.Scale(t, r.Direction))
}
