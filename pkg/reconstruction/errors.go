package reconstruction

import "errors"

// Domain errors for simulation and reconstruction.
var (
	// ErrNoAngles indicates a request for a scan with zero projection angles.
	ErrNoAngles = errors.New("reconstruction: number of angles must be positive")

	// ErrShapeMismatch indicates a sinogram whose detector bins do not match the field size.
	ErrShapeMismatch = errors.New("reconstruction: sinogram shape does not match field")
)
