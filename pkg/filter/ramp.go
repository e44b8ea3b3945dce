package filter

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Ramp applies the Ram-Lak filter to every column of projections in place.
// Each column is one projection; columns are filtered independently.
func Ramp(projections *mat.Dense) {
	rows, cols := projections.Dims()
	r := newRamp(rows)

	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, projections)
		r.apply(column)
		projections.SetCol(j, column)
	}
}

// ramp holds the FFT plan and the filter response for one projection length
type ramp struct {
	n        int
	fft      *fourier.FFT
	response []complex128
	padded   []float64
	coeff    []complex128
}

// newRamp prepares a filter for projections of length n. Projections are
// zero-padded to a power of two of at least 2n to avoid wrap-around.
func newRamp(n int) *ramp {
	size := 1
	for size < 2*n {
		size <<= 1
	}

	fft := fourier.NewFFT(size)

	// Spatial-domain Ram-Lak kernel, stored circularly.
	kernel := make([]float64, size)
	kernel[0] = 0.25
	for k := 1; k <= size/2; k++ {
		if k%2 == 1 {
			v := -1.0 / (math.Pi * math.Pi * float64(k*k))
			kernel[k] = v
			kernel[size-k] = v
		}
	}

	return &ramp{
		n:        n,
		fft:      fft,
		response: fft.Coefficients(nil, kernel),
		padded:   make([]float64, size),
		coeff:    make([]complex128, size/2+1),
	}
}

// apply filters projection in place
func (r *ramp) apply(projection []float64) {
	copy(r.padded, projection)
	for i := r.n; i < len(r.padded); i++ {
		r.padded[i] = 0
	}

	r.fft.Coefficients(r.coeff, r.padded)
	for k := range r.coeff {
		r.coeff[k] *= r.response[k]
	}
	r.fft.Sequence(r.padded, r.coeff)

	// The transform pair is unnormalised.
	scale := 1.0 / float64(len(r.padded))
	for i := 0; i < r.n; i++ {
		projection[i] = r.padded[i] * scale
	}
}
