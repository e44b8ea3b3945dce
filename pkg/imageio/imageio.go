// Package imageio loads grayscale grids from image files and writes quantised
// grids back to disk. It is the only package that knows about image formats.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register the GIF format with the image package
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrOpen indicates the input file could not be opened
	ErrOpen = errors.New("imageio: cannot open image")

	// ErrDecode indicates the file was readable but did not decode to a usable image
	ErrDecode = errors.New("imageio: cannot decode image")

	// ErrFormat indicates an output path with an unsupported extension
	ErrFormat = errors.New("imageio: unsupported output format")
)

// LoadError reports which file failed to load and why.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes the error kind so callers can use errors.Is(err, ErrOpen).
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Load decodes the image at path and returns its grey levels as a
// rows x cols matrix of values in [0, 1]. 8-bit intensities are scaled by 1/255.
func Load(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrOpen, Err: err}
	}
	defer file.Close()

	// Decode will figure out what type of image is in the file on its own.
	src, _, err := image.Decode(file)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrDecode, Err: err}
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, &LoadError{Path: path, Kind: ErrDecode, Err: errors.New("image has no pixels")}
	}

	return ImageToMatrix(src), nil
}

// ImageToMatrix converts any image to a matrix of grey values in [0, 1]
func ImageToMatrix(src image.Image) *mat.Dense {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray).Y
			data[y*width+x] = float64(gray) / 255.0
		}
	}

	return mat.NewDense(height, width, data)
}

// Gray8 builds an 8-bit image from a matrix whose entries are already on the
// 0..255 scale. Values are rounded and saturated.
func Gray8(m mat.Matrix) *image.Gray {
	rows, cols := m.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(Saturate(m.At(y, x), math.MaxUint8))})
		}
	}
	return img
}

// Gray16 builds a 16-bit image from a matrix whose entries are already on the
// 0..65535 scale. Values are rounded and saturated.
func Gray16(m mat.Matrix) *image.Gray16 {
	rows, cols := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(Saturate(m.At(y, x), math.MaxUint16))})
		}
	}
	return img
}

// Saturate rounds v half-to-even and clamps it to [0, max]. NaN maps to 0.
func Saturate(v, max float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	v = math.RoundToEven(v)
	if v > max {
		return max
	}
	return v
}

// Save encodes img to path. The format is chosen from the file extension.
func Save(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))

	var encode func(*os.File) error
	switch ext {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 90}) }
	case ".tif", ".tiff":
		encode = func(f *os.File) error { return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}) }
	case ".bmp":
		encode = func(f *os.File) error { return bmp.Encode(f, img) }
	default:
		return fmt.Errorf("%w: %q", ErrFormat, ext)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := encode(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}

	return file.Close()
}
