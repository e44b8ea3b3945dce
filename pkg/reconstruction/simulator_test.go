package reconstruction

import (
	"context"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"ctraysim/pkg/density"
	"ctraysim/pkg/filter"
)

func newField(t *testing.T, size int, fill func(x, y int) float64) *density.Field {
	t.Helper()
	grid := mat.NewDense(size, size, nil)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			grid.Set(y, x, fill(x, y))
		}
	}
	field, err := density.New(grid, nil)
	if err != nil {
		t.Fatalf("Failed to create field: %v", err)
	}
	return field
}

func uniform(c float64) func(x, y int) float64 {
	return func(_, _ int) float64 { return c }
}

func TestAngle(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Angle(0, 8)).To(Equal(0.0))
	g.Expect(Angle(2, 8)).To(BeNumerically("~", math.Pi/2, 1e-12))
	g.Expect(Angle(7, 8)).To(BeNumerically("<", 2*math.Pi))
}

func TestSimulateCTShapes(t *testing.T) {
	g := NewWithT(t)
	field := newField(t, 16, uniform(0.5))
	sim := NewSimulator(field, DefaultParams(), nil)

	for _, k := range []int{1, 3, 16, 40} {
		result, err := sim.SimulateCT(context.Background(), k)
		g.Expect(err).NotTo(HaveOccurred())

		rows, cols := result.Projections().Dims()
		g.Expect(rows).To(Equal(16))
		g.Expect(cols).To(Equal(k))
		g.Expect(result.NumAngles()).To(Equal(k))

		rows, cols = result.Image().Dims()
		g.Expect(rows).To(Equal(16))
		g.Expect(cols).To(Equal(16))
	}
}

func TestSimulateCTRejectsZeroAngles(t *testing.T) {
	g := NewWithT(t)
	sim := NewSimulator(newField(t, 8, uniform(1)), DefaultParams(), nil)

	_, err := sim.SimulateCT(context.Background(), 0)
	g.Expect(err).To(MatchError(ErrNoAngles))

	_, err = sim.Sinogram(context.Background(), -3)
	g.Expect(err).To(MatchError(ErrNoAngles))
}

// TestSinogramUniformField checks the raw line integrals of a uniform field
// against the chord lengths of the rays
func TestSinogramUniformField(t *testing.T) {
	g := NewWithT(t)
	const size, c, numAngles = 64, 0.5, 16
	sim := NewSimulator(newField(t, size, uniform(c)), DefaultParams(), nil)

	sinogram, err := sim.Sinogram(context.Background(), numAngles)
	g.Expect(err).NotTo(HaveOccurred())

	// At phi = 0 every ray starts on x = 63 and leaves at x = 0.
	for i := 0; i < size; i++ {
		g.Expect(sinogram.At(i, 0)).To(BeNumerically("~", 31.5, 1e-9), "ray %d", i)
	}

	// The central ray starts 31 units from the centre and crosses it.
	for j := 0; j < numAngles; j++ {
		sin, cos := math.Sincos(Angle(j, numAngles))
		chord := 31 + 32/math.Max(math.Abs(cos), math.Abs(sin))
		g.Expect(sinogram.At(size/2, j)).To(BeNumerically("~", c*chord, 0.5), "angle %d", j)
	}

	for _, v := range sinogram.RawMatrix().Data {
		g.Expect(v).To(BeNumerically(">=", 0))
	}
}

func TestSimulateCTUniformField(t *testing.T) {
	g := NewWithT(t)
	const size = 64
	sim := NewSimulator(newField(t, size, uniform(0.5)), DefaultParams(), nil)

	result, err := sim.SimulateCT(context.Background(), 32)
	g.Expect(err).NotTo(HaveOccurred())

	lo, hi := filter.Range(result.MutProjections())
	g.Expect(lo).To(Equal(0.0))
	g.Expect(hi).To(Equal(1.0))

	image := result.Image()
	g.Expect(image.At(size/2, size/2)).To(BeNumerically(">", image.At(0, 0)))
	g.Expect(image.At(size/2, size/2)).To(BeNumerically(">", image.At(size-1, size-1)))

	normalized := mat.DenseCopyOf(image)
	filter.Normalize(normalized)
	for _, v := range normalized.RawMatrix().Data {
		g.Expect(v).To(BeNumerically(">=", 0))
		g.Expect(v).To(BeNumerically("<=", 1))
	}
}

// TestSimulateCTHotSpot reconstructs a single bright pixel and expects the
// brightest reconstructed pixel next to it
func TestSimulateCTHotSpot(t *testing.T) {
	g := NewWithT(t)
	const size, spot = 32, 16
	field := newField(t, size, func(x, y int) float64 {
		if x == spot && y == spot {
			return 1
		}
		return 0
	})
	sim := NewSimulator(field, DefaultParams(), nil)

	result, err := sim.SimulateCT(context.Background(), 64)
	g.Expect(err).NotTo(HaveOccurred())

	image := result.Image()
	bestX, bestY, best := 0, 0, math.Inf(-1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if v := image.At(y, x); v > best {
				bestX, bestY, best = x, y, v
			}
		}
	}

	g.Expect(math.Abs(float64(bestX - spot))).To(BeNumerically("<=", 2))
	g.Expect(math.Abs(float64(bestY - spot))).To(BeNumerically("<=", 2))
	g.Expect(image.At(spot, spot)).To(BeNumerically(">", mat.Sum(image)/float64(size*size)))
}

// TestParallelMatchesSequential checks that the worker count never changes
// the result
func TestParallelMatchesSequential(t *testing.T) {
	g := NewWithT(t)
	field := newField(t, 24, func(x, y int) float64 {
		return float64((x*7+y*3)%11) / 10
	})

	run := func(cores int) (*mat.Dense, *mat.Dense) {
		params := DefaultParams()
		params.NumCores = cores
		result, err := NewSimulator(field, params, nil).SimulateCT(context.Background(), 20)
		g.Expect(err).NotTo(HaveOccurred())
		return result.MutImage(), result.MutProjections()
	}

	seqImage, seqProjections := run(1)
	for _, cores := range []int{2, 4, 7} {
		image, projections := run(cores)
		g.Expect(mat.Equal(seqProjections, projections)).To(BeTrue(), "cores=%d", cores)
		g.Expect(mat.Equal(seqImage, image)).To(BeTrue(), "cores=%d", cores)
	}
}

func TestSimulateCTRampFilter(t *testing.T) {
	g := NewWithT(t)
	params := DefaultParams()
	params.Filter = filter.ModeRamp
	field := newField(t, 16, func(x, y int) float64 {
		if x > 4 && x < 11 && y > 4 && y < 11 {
			return 1
		}
		return 0
	})

	result, err := NewSimulator(field, params, nil).SimulateCT(context.Background(), 24)
	g.Expect(err).NotTo(HaveOccurred())

	lo, hi := filter.Range(result.MutProjections())
	g.Expect(lo).To(Equal(0.0))
	g.Expect(hi).To(Equal(1.0))
	g.Expect(result.Image().At(8, 8)).To(BeNumerically(">", result.Image().At(0, 0)))
}

func TestSimulateCTCancelled(t *testing.T) {
	g := NewWithT(t)
	sim := NewSimulator(newField(t, 16, uniform(1)), DefaultParams(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.SimulateCT(ctx, 8)
	g.Expect(err).To(MatchError(context.Canceled))

	_, err = sim.BackProject(ctx, mat.NewDense(16, 4, nil))
	g.Expect(err).To(MatchError(context.Canceled))
}

func TestBackProjectShapeMismatch(t *testing.T) {
	g := NewWithT(t)
	sim := NewSimulator(newField(t, 16, uniform(1)), DefaultParams(), nil)

	_, err := sim.BackProject(context.Background(), mat.NewDense(15, 4, nil))
	g.Expect(err).To(MatchError(ErrShapeMismatch))
}

// TestBackProjectSingleAngle smears one projection at phi = 0, where the
// detector coordinate of pixel (x, y) is exactly y
func TestBackProjectSingleAngle(t *testing.T) {
	g := NewWithT(t)
	const size = 8
	sim := NewSimulator(newField(t, size, uniform(0)), DefaultParams(), nil)

	projections := mat.NewDense(size, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	image, err := sim.BackProject(context.Background(), projections)
	g.Expect(err).NotTo(HaveOccurred())

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.Expect(image.At(y, x)).To(BeNumerically("~", float64(y), 1e-9))
		}
	}
}

func TestSample(t *testing.T) {
	g := NewWithT(t)
	projection := []float64{2, 4, 8}

	tests := []struct {
		index float64
		want  float64
		ok    bool
	}{
		{0, 2, true},
		{0.5, 3, true},
		{1.25, 5, true},
		{2, 8, true},    // last bin alone
		{2.7, 8, true},  // right neighbour missing
		{-0.5, 2, true}, // left neighbour missing
		{-1, 2, true},
		{-1.5, 0, false},
		{3, 0, false},
	}

	for _, tt := range tests {
		got, ok := sample(projection, tt.index)
		g.Expect(ok).To(Equal(tt.ok), "index %v", tt.index)
		g.Expect(got).To(BeNumerically("~", tt.want, 1e-12), "index %v", tt.index)
	}
}

func TestNewSimulatorDefaults(t *testing.T) {
	g := NewWithT(t)
	sim := NewSimulator(newField(t, 4, uniform(1)), Params{}, nil)

	g.Expect(sim.params.NumCores).To(BeNumerically(">=", 1))
	g.Expect(sim.params.Filter).To(Equal(filter.ModeNormalize))
	g.Expect(sim.Tracer().Options().StepSize).To(Equal(0.5))
	g.Expect(sim.Field().Size()).To(Equal(4))
}
