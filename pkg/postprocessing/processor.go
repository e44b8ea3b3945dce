// Package postprocessing prepares result matrices for persistence: intensity
// normalisation and conversion to 8 or 16 bit grey levels.
package postprocessing

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"ctraysim/pkg/filter"
	"ctraysim/pkg/imageio"
)

// ErrDepth indicates an attempt to save values that were never quantised
var ErrDepth = errors.New("postprocessing: convert to 8 or 16 bit before saving")

// Depth is the numeric scale of the processor's values
type Depth int

const (
	// Float values are unquantised reals, usually in [0, 1]
	Float Depth = iota
	// U8 values are integers in [0, 255]
	U8
	// U16 values are integers in [0, 65535]
	U16
)

func (d Depth) String() string {
	switch d {
	case U8:
		return "8-bit"
	case U16:
		return "16-bit"
	default:
		return "float"
	}
}

// Processor applies a chain of operations to its own copy of a matrix.
type Processor struct {
	image  *mat.Dense
	depth  Depth
	logger *slog.Logger
}

// New copies m into a new processor. A nil logger discards diagnostics.
func New(m mat.Matrix, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		image:  mat.DenseCopyOf(m),
		depth:  Float,
		logger: logger,
	}
}

// Normalize rescales the values to [0, 1]
func (p *Processor) Normalize() *Processor {
	filter.Normalize(p.image)
	p.depth = Float
	return p
}

// To8U scales [0, 1] values to rounded, saturated integers in [0, 255]
func (p *Processor) To8U() *Processor {
	return p.quantize(U8, math.MaxUint8)
}

// To16U scales [0, 1] values to rounded, saturated integers in [0, 65535]
func (p *Processor) To16U() *Processor {
	return p.quantize(U16, math.MaxUint16)
}

func (p *Processor) quantize(depth Depth, full float64) *Processor {
	p.image.Apply(func(_, _ int, v float64) float64 {
		return imageio.Saturate(v*full, full)
	}, p.image)
	p.depth = depth
	return p
}

// Depth returns the current value scale
func (p *Processor) Depth() Depth {
	return p.depth
}

// Ref returns the processed matrix without copying
func (p *Processor) Ref() mat.Matrix {
	return p.image
}

// Matrix returns a copy of the processed matrix
func (p *Processor) Matrix() *mat.Dense {
	return mat.DenseCopyOf(p.image)
}

// Image returns the quantised values as a grey image
func (p *Processor) Image() (image.Image, error) {
	switch p.depth {
	case U8:
		return imageio.Gray8(p.image), nil
	case U16:
		return imageio.Gray16(p.image), nil
	default:
		return nil, ErrDepth
	}
}

// Save writes the processed image to outputPath. Failures are logged and
// returned; nothing panics.
func (p *Processor) Save(outputPath string) error {
	img, err := p.Image()
	if err == nil {
		err = imageio.Save(outputPath, img)
	}
	if err != nil {
		p.logger.Error("failed to save image", "path", outputPath, "err", err)
		return fmt.Errorf("save %s: %w", outputPath, err)
	}

	p.logger.Info("saved image", "path", outputPath, "depth", p.depth)
	return nil
}
