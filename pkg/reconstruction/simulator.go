// Package reconstruction sweeps the simulated scanner around the density field
// to build a sinogram and reconstructs an image from it by backprojection.
package reconstruction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"ctraysim/internal/models"
	"ctraysim/pkg/density"
	"ctraysim/pkg/filter"
	"ctraysim/pkg/raytracer"
)

// Params holds the simulation parameters.
type Params struct {
	// NumCores bounds the number of goroutines used for the forward sweep and
	// the backprojection. Values below 1 mean runtime.NumCPU().
	NumCores int

	// Filter selects the projection filtering step.
	Filter filter.Mode

	// Tracer tunes the line integral.
	Tracer raytracer.Options
}

// DefaultParams returns plain min-max normalisation with the default
// integrator on all cores.
func DefaultParams() Params {
	return Params{
		NumCores: runtime.NumCPU(),
		Filter:   filter.ModeNormalize,
		Tracer:   raytracer.DefaultOptions(),
	}
}

// Simulator runs a parallel-beam CT acquisition over a density field and
// reconstructs the field from the simulated projections.
//
// Results do not depend on NumCores: every sinogram column is written by a
// single task and every pixel sums its angles in ascending order.
type Simulator struct {
	field  *density.Field
	tracer *raytracer.Tracer
	params Params
	logger *slog.Logger
}

// NewSimulator creates a simulator for field. A nil logger discards diagnostics.
func NewSimulator(field *density.Field, params Params, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if params.NumCores < 1 {
		params.NumCores = runtime.NumCPU()
	}
	if params.Filter == "" {
		params.Filter = filter.ModeNormalize
	}
	return &Simulator{
		field:  field,
		tracer: raytracer.New(field, params.Tracer, logger),
		params: params,
		logger: logger,
	}
}

// Field returns the density field being scanned
func (s *Simulator) Field() *density.Field {
	return s.field
}

// Tracer returns the ray tracer bound to the field
func (s *Simulator) Tracer() *raytracer.Tracer {
	return s.tracer
}

// Angle returns the rotation in radians of projection i out of numAngles,
// uniformly covering [0, 2*pi).
func Angle(i, numAngles int) float64 {
	return 2 * math.Pi * float64(i) / float64(numAngles)
}

// SimulateCT simulates a scan with numAngles projections, filters the
// sinogram and backprojects it.
func (s *Simulator) SimulateCT(ctx context.Context, numAngles int) (*models.SimulationResult, error) {
	s.logger.Info("starting CT simulation", "angles", numAngles, "cores", s.params.NumCores)

	projections, err := s.Sinogram(ctx, numAngles)
	if err != nil {
		return nil, err
	}

	if err := s.FilterProjections(projections); err != nil {
		return nil, err
	}

	image, err := s.BackProject(ctx, projections)
	if err != nil {
		return nil, err
	}

	s.logger.Info("CT simulation completed")
	return models.NewSimulationResult(image, projections), nil
}

// Sinogram runs the forward model only and returns the unfiltered
// size x numAngles projection matrix.
func (s *Simulator) Sinogram(ctx context.Context, numAngles int) (*mat.Dense, error) {
	if numAngles <= 0 {
		return nil, ErrNoAngles
	}

	size := s.field.Size()
	columns := make([][]float64, numAngles)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.params.NumCores)
	for i := 0; i < numAngles; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			columns[i] = s.SimulateProjectionForAngle(Angle(i, numAngles))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forward projection interrupted: %w", err)
	}

	projections := mat.NewDense(size, numAngles, nil)
	for i, column := range columns {
		projections.SetCol(i, column)
	}
	return projections, nil
}

// SimulateProjectionForAngle traces one detector-wide fan of size rays at
// angle phi and returns the line integrals in ray order.
func (s *Simulator) SimulateProjectionForAngle(phi float64) []float64 {
	s.logger.Debug("simulating projection", "degrees", phi*180/math.Pi)
	rays := s.tracer.SetupRays(phi, s.field.Size())
	return s.tracer.Project(rays)
}

// FilterProjections applies the configured filter to projections in place.
//
// In the default mode this is a plain min-max rescale to [0, 1]; no
// frequency-domain filtering takes place.
func (s *Simulator) FilterProjections(projections *mat.Dense) error {
	s.logger.Debug("filtering projections", "mode", s.params.Filter)
	return filter.Apply(s.params.Filter, projections)
}

// BackProject smears every projection back across a size x size image.
//
// For each angle and pixel the detector coordinate of the pixel is linearly
// interpolated between the two neighbouring bins. When only one neighbour
// exists that bin is used alone; when neither does the angle adds nothing.
// Contributions are summed without any 1/numAngles weighting.
func (s *Simulator) BackProject(ctx context.Context, projections mat.Matrix) (*mat.Dense, error) {
	s.logger.Info("starting reconstruction of the image from projections")

	size := s.field.Size()
	bins, numAngles := projections.Dims()
	if bins != size {
		return nil, fmt.Errorf("%w: %d detector bins for field size %d", ErrShapeMismatch, bins, size)
	}

	sines := make([]float64, numAngles)
	cosines := make([]float64, numAngles)
	for i := range sines {
		sines[i], cosines[i] = math.Sincos(Angle(i, numAngles))
	}

	// One column per angle, contiguous for the inner loop.
	columns := make([][]float64, numAngles)
	for i := range columns {
		columns[i] = mat.Col(nil, i, projections)
	}

	image := mat.NewDense(size, size, nil)
	center := float64(size) / 2.0

	parallelFor(size, s.params.NumCores, func(start, end int) {
		for i := 0; i < numAngles; i++ {
			if ctx.Err() != nil {
				return
			}
			if start == 0 {
				s.logger.Debug("processing angle", "index", i, "degrees", Angle(i, numAngles)*180/math.Pi)
			}

			column, sin, cos := columns[i], sines[i], cosines[i]
			for y := start; y < end; y++ {
				row := image.RawRowView(y)
				yRel := float64(y) - center
				for x := 0; x < size; x++ {
					xRel := float64(x) - center
					t := -xRel*sin + yRel*cos
					if v, ok := sample(column, t+center); ok {
						row[x] += v
					}
				}
			}
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backprojection interrupted: %w", err)
	}
	return image, nil
}

// sample reads projection at the fractional bin index, interpolating between
// the bracketing bins. It reports false when both bins are out of range.
func sample(projection []float64, index float64) (float64, bool) {
	bins := len(projection)
	index0 := int(math.Floor(index))
	index1 := index0 + 1
	weight1 := index - float64(index0)
	weight0 := 1.0 - weight1

	switch {
	case index0 >= 0 && index1 < bins:
		return weight0*projection[index0] + weight1*projection[index1], true
	case index0 >= 0 && index0 < bins:
		return projection[index0], true
	case index1 >= 0 && index1 < bins:
		return projection[index1], true
	default:
		return 0, false
	}
}
