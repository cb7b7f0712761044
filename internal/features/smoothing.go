package features

import (
	"math"
)

// silenceDb is reported for an all-zero block.
const silenceDb = -120.0

// SmoothedPeak averages consecutive groups of strength bins (the last group may be shorter) and returns the index,
// in original bins, of the first bin of the strongest group.
func SmoothedPeak(values []float64, strength int) int {
	strength = max(strength, 1)

	best, bestValue := 0, math.Inf(-1)

	for start := 0; start < len(values); start += strength {
		end := min(start+strength, len(values))

		var total float64
		for _, v := range values[start:end] {
			total += v
		}

		avg := total / float64(end-start)
		if avg > bestValue {
			best, bestValue = start, avg
		}
	}

	return best
}

// PeakDb returns the absolute peak level of the block in dBFS.
func PeakDb(block []float64) float64 {
	var peak float64
	for _, s := range block {
		peak = max(peak, math.Abs(s))
	}

	if peak == 0 {
		return silenceDb
	}

	return 20 * math.Log10(peak)
}
