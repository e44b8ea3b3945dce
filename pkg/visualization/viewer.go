// Package visualization turns simulation results into artifacts: PNG files on
// disk and terminal plots of individual projections.
package visualization

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/mat"

	"ctraysim/internal/models"
	"ctraysim/pkg/density"
	"ctraysim/pkg/postprocessing"
)

// Artifact file names inside the output directory
const (
	ProjectionsFile     = "projections.png"
	ReconstructionFile  = "reconstructed_image.png"
	Reconstruction16    = "reconstructed_image_16bit.png"
	DebugDensityMapFile = "debug_density_map.png"
)

// Source selects which matrix of a result a profile is read from
type Source string

const (
	// SourceProjections reads one sinogram column, i.e. one projection
	SourceProjections Source = "projections"

	// SourceImage reads one row of the reconstructed image
	SourceImage Source = "image"
)

// Viewer exposes a finished simulation result for persistence and inspection.
// It only reads the result, so several viewers may share one.
type Viewer struct {
	result *models.SimulationResult
	logger *slog.Logger
}

// NewViewer creates a viewer over result. A nil logger discards diagnostics.
func NewViewer(result *models.SimulationResult, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Viewer{result: result, logger: logger}
}

// ExtractProfile returns a copy of one line of the result: the projection at
// angle index position, or the image row at position.
func (v *Viewer) ExtractProfile(source Source, position int) ([]float64, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	switch source {
	case SourceProjections:
		m := v.result.Projections()
		if _, cols := m.Dims(); position >= cols {
			return nil, fmt.Errorf("position %d exceeds angle count %d", position, cols)
		}
		return mat.Col(nil, position, m), nil

	case SourceImage:
		m := v.result.Image()
		if rows, _ := m.Dims(); position >= rows {
			return nil, fmt.Errorf("position %d exceeds image height %d", position, rows)
		}
		return mat.Row(nil, position, m), nil

	default:
		return nil, fmt.Errorf("invalid source: %s (must be %s or %s)", source, SourceProjections, SourceImage)
	}
}

// ProfilePlot renders a profile as an ASCII graph
func ProfilePlot(profile []float64, height, width int, caption string) string {
	if len(profile) == 0 {
		return ""
	}
	return asciigraph.Plot(profile,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// ArtifactOptions selects the optional artifacts
type ArtifactOptions struct {
	// Save16Bit additionally writes a 16-bit reconstruction
	Save16Bit bool

	// DebugField, when set, is written back out as the debug density map
	DebugField *density.Field
}

// SaveArtifacts writes the result images into outputDir, creating it if
// needed. Directory creation failure is returned immediately; individual
// image failures are logged and the first one is returned after all images
// have been attempted.
func (v *Viewer) SaveArtifacts(outputDir string, opts ArtifactOptions) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	var saved []string
	var firstErr error
	save := func(p *postprocessing.Processor, name string) {
		path := filepath.Join(outputDir, name)
		if err := p.Save(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		saved = append(saved, path)
	}

	// The sinogram is already normalised by the filter step.
	save(postprocessing.New(v.result.Projections(), v.logger).To8U(), ProjectionsFile)
	save(postprocessing.New(v.result.Image(), v.logger).Normalize().To8U(), ReconstructionFile)
	if opts.Save16Bit {
		save(postprocessing.New(v.result.Image(), v.logger).Normalize().To16U(), Reconstruction16)
	}
	if opts.DebugField != nil {
		save(postprocessing.New(opts.DebugField.Grid(), v.logger).To8U(), DebugDensityMapFile)
	}

	return saved, firstErr
}
