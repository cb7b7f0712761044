package features

import (
	"gonum.org/v1/gonum/stat"

	"github.com/farcloser/whistlelab/internal/types"
)

// Stats returns the mean and population standard deviation of the spectrum.
func Stats(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	return stat.PopMeanStdDev(values, nil)
}

// GrowBackground shrinks band from both ends, one bucket at a time, while the bucket mean stays below threshold.
// The result may be empty when the whole band is background.
func GrowBackground(values []float64, band types.Band, threshold float64, buckets int) types.Band {
	band = band.Clamp(0, len(values))
	if buckets <= 0 || band.Len() == 0 {
		return band
	}

	step := max(band.Len()/buckets, 1)

	for range buckets {
		if band.Len() < step || mean(values, band.Begin, band.Begin+step) >= threshold {
			break
		}

		band.Begin += step
	}

	for range buckets {
		if band.Len() < step || mean(values, band.End-step, band.End) >= threshold {
			break
		}

		band.End -= step
	}

	return band
}

// Mean returns the average value inside band, or 0 for an empty band.
func Mean(values []float64, band types.Band) float64 {
	band = band.Clamp(0, len(values))
	if band.Len() == 0 {
		return 0
	}

	return mean(values, band.Begin, band.End)
}

func mean(values []float64, lo, hi int) float64 {
	return stat.Mean(values[lo:hi], nil)
}
