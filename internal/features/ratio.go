package features

import (
	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/whistlelab/internal/types"
)

// BandRatio returns the energy inside band over the energy of everything above it.
// It reports false when there is nothing above the band to compare against.
func BandRatio(values []float64, band types.Band) (float64, bool) {
	band = band.Clamp(0, len(values))

	stop := floats.Sum(values[band.End:])
	if stop <= 0 {
		return 0, false
	}

	return floats.Sum(values[band.Begin:band.End]) / stop, true
}
