package reconstruction

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ctraysim/pkg/density"
	"ctraysim/pkg/filter"
)

// Metrics compares a reconstruction against the field it was simulated from.
// The reconstruction is min-max normalised first because unfiltered
// backprojection only preserves relative structure.
type Metrics struct {
	// RMSE is the root mean square difference of the two grids.
	// Lower is better.
	RMSE float64

	// SSIM is the global structural similarity index in [-1, 1].
	SSIM float64

	// MI approximates mutual information under a Gaussian assumption.
	MI float64

	// EntropyDiff is the absolute difference of the 256-bin Shannon entropies.
	EntropyDiff float64

	// Correlation is the Pearson correlation of the two grids, 0 when either
	// grid is constant.
	Correlation float64
}

// Evaluate computes Metrics for image against field
func Evaluate(field *density.Field, image mat.Matrix) (Metrics, error) {
	size := field.Size()
	if r, c := image.Dims(); r != size || c != size {
		return Metrics{}, ErrShapeMismatch
	}

	normalized := mat.DenseCopyOf(image)
	filter.Normalize(normalized)

	original := flatten(field.Grid())
	reconstructed := flatten(normalized)

	return Metrics{
		RMSE:        calculateRMSE(original, reconstructed),
		SSIM:        calculateSSIM(original, reconstructed),
		MI:          calculateMutualInformation(original, reconstructed),
		EntropyDiff: math.Abs(calculateEntropy(original) - calculateEntropy(reconstructed)),
		Correlation: calculateCorrelation(original, reconstructed),
	}, nil
}

// flatten copies m into a row-major slice
func flatten(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return data
}

func calculateRMSE(original, reconstructed []float64) float64 {
	if len(original) != len(reconstructed) || len(original) == 0 {
		return 0
	}
	mse := 0.0
	for i := range original {
		diff := original[i] - reconstructed[i]
		mse += diff * diff
	}
	return math.Sqrt(mse / float64(len(original)))
}

func calculateSSIM(original, reconstructed []float64) float64 {
	const L = 1.0 // dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	if len(original) != len(reconstructed) || len(original) < 2 {
		return 0
	}

	muX := stat.Mean(original, nil)
	muY := stat.Mean(reconstructed, nil)
	sigmaX := stat.Variance(original, nil)
	sigmaY := stat.Variance(reconstructed, nil)
	sigmaXY := stat.Covariance(original, reconstructed, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// calculateMutualInformation uses MI = 0.5 * log(varX*varY / (varX*varY - cov^2))
func calculateMutualInformation(original, reconstructed []float64) float64 {
	if len(original) != len(reconstructed) || len(original) < 2 {
		return 0
	}
	varX := stat.Variance(original, nil)
	varY := stat.Variance(reconstructed, nil)
	cov := stat.Covariance(original, reconstructed, nil)

	if varX > 0 && varY > 0 {
		det := varX*varY - cov*cov
		if det > 0 {
			return 0.5 * math.Log(varX*varY/det)
		}
	}
	return 0
}

func calculateCorrelation(original, reconstructed []float64) float64 {
	if len(original) != len(reconstructed) || len(original) < 2 {
		return 0
	}
	if stat.Variance(original, nil) == 0 || stat.Variance(reconstructed, nil) == 0 {
		return 0
	}
	return stat.Correlation(original, reconstructed, nil)
}

// calculateEntropy returns the Shannon entropy in bits over 256 bins
func calculateEntropy(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (hi - lo) / numBins
	for _, v := range data {
		idx := int((v - lo) / binWidth)
		if idx >= numBins {
			idx = numBins - 1
		}
		hist[idx]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(len(data))
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
