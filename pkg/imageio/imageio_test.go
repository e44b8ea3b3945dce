package imageio

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSaturate(t *testing.T) {
	tests := []struct {
		v, max, want float64
	}{
		{-3, 255, 0},
		{0, 255, 0},
		{0.4, 255, 0},
		{0.5, 255, 0}, // half to even
		{1.5, 255, 2},
		{2.5, 255, 2},
		{127.5, 255, 128},
		{254.6, 255, 255},
		{300, 255, 255},
		{70000, 65535, 65535},
		{math.NaN(), 255, 0},
		{math.Inf(1), 255, 255},
	}

	for _, tt := range tests {
		if got := Saturate(tt.v, tt.max); got != tt.want {
			t.Errorf("Saturate(%v, %v) = %v, expected %v", tt.v, tt.max, got, tt.want)
		}
	}
}

func TestGray8(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		0, 100.4, 255,
		-7, 300, 17.5,
	})
	img := Gray8(m)

	if img.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}

	want := [][]uint8{{0, 100, 255}, {0, 255, 18}}
	for y, row := range want {
		for x, w := range row {
			if got := img.GrayAt(x, y).Y; got != w {
				t.Errorf("pixel (%d, %d): expected %d, got %d", x, y, w, got)
			}
		}
	}
}

func TestGray16(t *testing.T) {
	img := Gray16(mat.NewDense(1, 3, []float64{0, 32767.5, 1e6}))

	want := []uint16{0, 32768, 65535}
	for x, w := range want {
		if got := img.Gray16At(x, 0).Y; got != w {
			t.Errorf("pixel %d: expected %d, got %d", x, w, got)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	src := image.NewGray(image.Rect(0, 0, 5, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(x*50 + y)})
		}
	}

	for _, name := range []string{"a.png", "a.tif", "a.tiff", "a.bmp", "A.PNG"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, src); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			m, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			rows, cols := m.Dims()
			if rows != 3 || cols != 5 {
				t.Fatalf("Expected 3x5, got %dx%d", rows, cols)
			}
			for y := 0; y < 3; y++ {
				for x := 0; x < 5; x++ {
					want := float64(x*50+y) / 255.0
					if got := m.At(y, x); math.Abs(got-want) > 1e-12 {
						t.Errorf("(%d, %d): expected %f, got %f", x, y, want, got)
					}
				}
			}
		})
	}
}

func TestSaveJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := Save(path, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rows, cols := m.Dims(); rows != 8 || cols != 8 {
		t.Errorf("Expected 8x8, got %dx%d", rows, cols)
	}
}

func TestSaveUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.webp")
	err := Save(path, image.NewGray(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("Expected ErrFormat, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("No file should be created for an unsupported format")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.png"))
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Path != filepath.Join(dir, "missing.png") {
		t.Errorf("Expected a LoadError carrying the path, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the underlying os error to be preserved, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(garbage); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestImageToMatrixColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{A: 255})

	m := ImageToMatrix(img)
	if m.At(0, 0) != 1 || m.At(0, 1) != 0 {
		t.Errorf("Expected white=1 and black=0, got %v", mat.Formatted(m))
	}
}
