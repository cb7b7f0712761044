package classify

import (
	"gonum.org/v1/gonum/stat"

	"github.com/farcloser/whistlelab/internal/types"
)

// minStdDev guards constant features. Anything below it is treated as unit variance.
const minStdDev = 1e-10

// Scaler standardizes each feature to zero mean and unit variance.
type Scaler struct {
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"stdDev"`
}

// FitScaler computes per-feature mean and population standard deviation over the examples.
func FitScaler(examples []types.TrainingExample) (Scaler, error) {
	if len(examples) == 0 {
		return Scaler{}, ErrNoExamples
	}

	size := len(examples[0].Features)
	scaler := Scaler{Mean: make([]float64, size), StdDev: make([]float64, size)}
	column := make([]float64, len(examples))

	for f := range size {
		for i, ex := range examples {
			if len(ex.Features) != size {
				return Scaler{}, ErrFeatureCount
			}

			column[i] = ex.Features[f]
		}

		mean, std := stat.PopMeanStdDev(column, nil)
		if std < minStdDev {
			std = 1
		}

		scaler.Mean[f], scaler.StdDev[f] = mean, std
	}

	return scaler, nil
}

// Apply writes the standardized features into dst, which must be at least as long as features.
func (s Scaler) Apply(dst []float64, features types.FeatureVector) []float64 {
	for i, v := range features {
		dst[i] = (v - s.Mean[i]) / s.StdDev[i]
	}

	return dst[:len(features)]
}

func (s Scaler) valid(size int) bool {
	if len(s.Mean) != size || len(s.StdDev) != size {
		return false
	}

	for _, sd := range s.StdDev {
		if !(sd > 0) {
			return false
		}
	}

	return true
}
