// Package density provides the square grid of normalised density values that
// the simulated scanner probes.
package density

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/mat"

	"ctraysim/pkg/imageio"
)

var (
	// ErrNotSquare indicates an input grid whose rows and columns differ
	ErrNotSquare = errors.New("density: input must be square (n x n)")

	// ErrEmpty indicates an input grid without cells
	ErrEmpty = errors.New("density: input has no cells")
)

// Field is an immutable N x N grid of density values in [0, 1].
//
// Reads outside the grid return 0.0: everything outside the scanned object
// is treated as vacuum.
type Field struct {
	// grid stores the values with row = y and column = x
	grid *mat.Dense

	// size is the side length of the grid
	size int

	logger *slog.Logger
}

// New wraps grid as a density field. The grid is copied so later changes by
// the caller cannot leak into the field. A nil logger discards diagnostics.
func New(grid mat.Matrix, logger *slog.Logger) (*Field, error) {
	if grid == nil {
		return nil, ErrEmpty
	}
	rows, cols := grid.Dims()
	if rows == 0 || cols == 0 {
		return nil, ErrEmpty
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: rows %d, columns %d", ErrNotSquare, rows, cols)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Field{
		grid:   mat.DenseCopyOf(grid),
		size:   rows,
		logger: logger,
	}, nil
}

// Load reads the image at path through imageio and validates it as a field.
// Errors are returned rather than terminating the process so the caller
// decides whether to abort.
func Load(path string, logger *slog.Logger) (*Field, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Info("loading image", "path", path)

	grid, err := imageio.Load(path)
	if err != nil {
		logger.Error("failed to load image", "path", path, "err", err)
		return nil, err
	}

	field, err := New(grid, logger)
	if err != nil {
		logger.Error("invalid density field", "path", path, "err", err)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Info("image size set", "size", fmt.Sprintf("%dx%d", field.size, field.size))
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("sample density values (limited to 10x10, centered)")
		for _, row := range field.CenterSample(10) {
			logger.Debug(row)
		}
	}

	return field, nil
}

// Size returns the side length of the field
func (f *Field) Size() int {
	return f.size
}

// At returns the density at integer coordinates (x, y), or 0.0 when the
// coordinates fall outside the grid.
func (f *Field) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= f.size || y >= f.size {
		f.logger.Warn("access out of bounds, returning 0.0", "x", x, "y", y)
		return 0
	}
	return f.grid.At(y, x)
}

// Grid returns a read-only view of the underlying values
func (f *Field) Grid() mat.Matrix {
	return f.grid
}

// CenterSample formats an n x n window around the field centre, one string
// per row, clipped to the grid.
func (f *Field) CenterSample(n int) []string {
	center := f.size / 2
	lo := max(center-n/2, 0)
	hi := min(center+n-n/2, f.size)

	rows := make([]string, 0, hi-lo)
	for y := lo; y < hi; y++ {
		var sb strings.Builder
		for x := lo; x < hi; x++ {
			fmt.Fprintf(&sb, "%.2f ", f.grid.At(y, x))
		}
		rows = append(rows, strings.TrimSpace(sb.String()))
	}
	return rows
}
