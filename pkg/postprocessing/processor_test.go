package postprocessing_test

import (
	"image"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"ctraysim/pkg/postprocessing"
)

var _ = Describe("Processor", func() {
	var source *mat.Dense

	BeforeEach(func() {
		source = mat.NewDense(2, 2, []float64{
			10, 20,
			30, 50,
		})
	})

	Describe("Normalize", func() {
		It("rescales to [0, 1]", func() {
			p := postprocessing.New(source, nil).Normalize()
			Expect(p.Ref().At(0, 0)).To(Equal(0.0))
			Expect(p.Ref().At(1, 1)).To(Equal(1.0))
			Expect(p.Ref().At(0, 1)).To(BeNumerically("~", 0.25, 1e-12))
		})

		It("does not touch the source matrix", func() {
			postprocessing.New(source, nil).Normalize().To8U()
			Expect(source.At(1, 1)).To(Equal(50.0))
		})

		It("is idempotent", func() {
			once := postprocessing.New(source, nil).Normalize().Matrix()
			twice := postprocessing.New(once, nil).Normalize().Matrix()
			Expect(mat.Equal(once, twice)).To(BeTrue())
		})
	})

	Describe("quantisation", func() {
		It("maps [0, 1] to rounded 8-bit levels", func() {
			p := postprocessing.New(mat.NewDense(1, 4, []float64{0, 0.5, 1, 1.7}), nil).To8U()
			Expect(p.Depth()).To(Equal(postprocessing.U8))
			Expect(mat.Row(nil, 0, p.Ref())).To(Equal([]float64{0, 128, 255, 255}))
		})

		It("maps [0, 1] to 16-bit levels and clamps negatives", func() {
			p := postprocessing.New(mat.NewDense(1, 3, []float64{-0.2, 0.5, 1}), nil).To16U()
			Expect(p.Depth()).To(Equal(postprocessing.U16))
			Expect(mat.Row(nil, 0, p.Ref())).To(Equal([]float64{0, 32768, 65535}))
		})
	})

	Describe("Image", func() {
		It("refuses unquantised values", func() {
			_, err := postprocessing.New(source, nil).Image()
			Expect(err).To(MatchError(postprocessing.ErrDepth))
		})

		It("produces a gray image with matching bounds", func() {
			img, err := postprocessing.New(source, nil).Normalize().To8U().Image()
			Expect(err).NotTo(HaveOccurred())
			Expect(img).To(BeAssignableToTypeOf(&image.Gray{}))
			Expect(img.Bounds()).To(Equal(image.Rect(0, 0, 2, 2)))
		})

		It("produces a 16-bit image after To16U", func() {
			img, err := postprocessing.New(source, nil).Normalize().To16U().Image()
			Expect(err).NotTo(HaveOccurred())
			Expect(img).To(BeAssignableToTypeOf(&image.Gray16{}))
		})
	})

	Describe("Save", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("writes a PNG", func() {
			path := filepath.Join(dir, "out.png")
			Expect(postprocessing.New(source, nil).Normalize().To8U().Save(path)).To(Succeed())
			_, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports failures instead of panicking", func() {
			path := filepath.Join(dir, "missing", "out.png")
			Expect(postprocessing.New(source, nil).Normalize().To8U().Save(path)).NotTo(Succeed())
		})
	})
})
