// Package raytracer generates the parallel-beam ray fan for a rotation angle
// and integrates the density field along individual rays.
package raytracer

import (
	"context"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"ctraysim/internal/models"
	"ctraysim/pkg/density"
)

// DefaultStepSize is the Riemann step along the ray, in pixel units
const DefaultStepSize = 0.5

// LevelTrace is finer than slog.LevelDebug and is used for per-ray output
const LevelTrace = slog.LevelDebug - 4

// Options tune the line integral
type Options struct {
	// StepSize is the distance between samples along the ray
	StepSize float64

	// PartialStep weights the last sample by the remaining distance to the
	// exit point instead of a full step. It changes absolute sums only.
	PartialStep bool
}

// DefaultOptions returns the left-rule integrator with a 0.5 step
func DefaultOptions() Options {
	return Options{StepSize: DefaultStepSize}
}

// Tracer casts rays through a density field.
//
// The field is borrowed read-only for the lifetime of the tracer; a Tracer is
// safe for concurrent use because it never mutates the field or itself.
type Tracer struct {
	field  *density.Field
	opts   Options
	logger *slog.Logger
}

// New creates a tracer over field. A non-positive step size falls back to
// DefaultStepSize and a nil logger discards diagnostics.
func New(field *density.Field, opts Options, logger *slog.Logger) *Tracer {
	if opts.StepSize <= 0 {
		opts.StepSize = DefaultStepSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracer{field: field, opts: opts, logger: logger}
}

// Options returns the integration options in use
func (t *Tracer) Options() Options {
	return t.opts
}

// rotate applies the 2x2 rotation matrix for phi to v
func rotate(v r2.Vec, phi float64) r2.Vec {
	sin, cos := math.Sincos(phi)
	rot := mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})

	var out mat.VecDense
	out.MulVec(rot, mat.NewVecDense(2, []float64{v.X, v.Y}))
	return r2.Vec{X: out.AtVec(0), Y: out.AtVec(1)}
}

// perp returns v rotated by +90 degrees
func perp(v r2.Vec) r2.Vec {
	return r2.Vec{X: -v.Y, Y: v.X}
}

// unitOr normalises v, or returns fallback when v has zero length
func unitOr(v, fallback r2.Vec) r2.Vec {
	if r2.Norm(v) == 0 {
		return fallback
	}
	return r2.Unit(v)
}

// SetupRays returns numRays parallel rays for a detector rotated by phi
// radians around the field centre.
//
// The detector line sits at centre + angleVec, where angleVec is the base
// vector (radius-1, 0) rotated by phi. All rays point along -angleVec and are
// spread evenly over size units of the tangent line, so the array spans the
// field whatever numRays is.
func (t *Tracer) SetupRays(phi float64, numRays int) []models.Ray {
	if numRays <= 0 {
		return []models.Ray{}
	}
	t.logger.Debug("setting up rays", "phi", phi, "rays", numRays)

	size := t.field.Size()
	radius := float64(size) / 2.0
	center := r2.Vec{X: radius, Y: radius}

	axis := rotate(r2.Vec{X: 1, Y: 0}, phi)
	angle := rotate(r2.Vec{X: radius - 1.0, Y: 0}, phi)
	direction := unitOr(r2.Scale(-1, angle), r2.Scale(-1, axis))

	tangentCenter := r2.Add(center, angle)
	tangentDirection := unitOr(perp(angle), perp(axis))

	t.logger.Debug("ray geometry",
		"center", center,
		"angle", angle,
		"direction", direction,
		"tangentCenter", tangentCenter,
		"tangentDirection", tangentDirection,
	)

	step := float64(size) / float64(numRays)
	rays := make([]models.Ray, numRays)
	for i := range rays {
		offset := float64(i)*step - radius
		origin := r2.Add(tangentCenter, r2.Scale(offset, tangentDirection))
		rays[i] = models.NewRay(origin, direction, size)
	}

	return rays
}

// Clip intersects the ray with the field's bounding box [0,size]x[0,size].
// It returns the parametric entry and exit distances and whether the ray hits
// the box at all in front of its origin.
func (t *Tracer) Clip(ray models.Ray) (tEntry, tExit float64, ok bool) {
	bound := float64(t.field.Size())
	origin := [2]float64{ray.Origin.X, ray.Origin.Y}
	dir := [2]float64{ray.Direction.X, ray.Direction.Y}

	tEntry = math.Inf(-1)
	tExit = math.Inf(1)

	for axis := 0; axis < 2; axis++ {
		if dir[axis] != 0 {
			t1 := (0 - origin[axis]) / dir[axis]
			t2 := (bound - origin[axis]) / dir[axis]
			tEntry = math.Max(tEntry, math.Min(t1, t2))
			tExit = math.Min(tExit, math.Max(t1, t2))
		} else if origin[axis] < 0 || origin[axis] > bound {
			// Parallel to this axis and outside the slab.
			return 0, 0, false
		}
	}

	if tExit < tEntry || tExit < 0 {
		return 0, 0, false
	}
	return tEntry, tExit, true
}

// TraceRay integrates the density along ray inside the field bounds.
//
// Samples are taken every StepSize from max(tEntry, 0) up to tExit and read the
// cell at floor(p). Samples outside the grid contribute nothing. Rays that miss
// the field return 0.0.
func (t *Tracer) TraceRay(ray models.Ray) float64 {
	tEntry, tExit, ok := t.Clip(ray)
	if !ok {
		t.logger.Log(context.Background(), LevelTrace, "no valid intersection with field bounds",
			"origin", ray.Origin, "direction", ray.Direction)
		return 0
	}

	size := t.field.Size()
	dt := t.opts.StepSize
	tStart := math.Max(tEntry, 0)
	tEnd := tExit

	total := 0.0
	for s := tStart; s < tEnd; s += dt {
		p := ray.At(s)
		x := int(math.Floor(p.X))
		y := int(math.Floor(p.Y))
		if x < 0 || x >= size || y < 0 || y >= size {
			continue
		}

		weight := dt
		if t.opts.PartialStep && tEnd-s < dt {
			weight = tEnd - s
		}
		total += t.field.At(x, y) * weight
	}

	t.logger.Log(context.Background(), LevelTrace, "traced ray",
		"tStart", tStart, "tEnd", tEnd, "density", total)
	return total
}

// Project traces every ray and returns the results in ray order
func (t *Tracer) Project(rays []models.Ray) []float64 {
	values := make([]float64, len(rays))
	for i, ray := range rays {
		values[i] = t.TraceRay(ray)
	}
	return values
}
