package models

import (
	"gonum.org/v1/gonum/mat"
)

// SimulationResult pairs the reconstructed image with the sinogram it was
// computed from.
//
// Image is size x size. Projections is detectorBins x numAngles, one column
// per rotation angle.
type SimulationResult struct {
	image       *mat.Dense
	projections *mat.Dense
}

// NewSimulationResult takes ownership of the two matrices
func NewSimulationResult(image, projections *mat.Dense) *SimulationResult {
	return &SimulationResult{
		image:       image,
		projections: projections,
	}
}

// Image returns a read-only view of the reconstructed image
func (r *SimulationResult) Image() mat.Matrix {
	return r.image
}

// Projections returns a read-only view of the sinogram
func (r *SimulationResult) Projections() mat.Matrix {
	return r.projections
}

// MutImage returns the reconstructed image for in-place post-processing
func (r *SimulationResult) MutImage() *mat.Dense {
	return r.image
}

// MutProjections returns the sinogram for in-place post-processing
func (r *SimulationResult) MutProjections() *mat.Dense {
	return r.projections
}

// Size returns the side length of the reconstructed image
func (r *SimulationResult) Size() int {
	rows, _ := r.image.Dims()
	return rows
}

// NumAngles returns the number of projection angles in the sinogram
func (r *SimulationResult) NumAngles() int {
	_, cols := r.projections.Dims()
	return cols
}
