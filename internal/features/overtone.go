package features

import (
	"fmt"

	"github.com/farcloser/whistlelab/internal/types"
)

// Range is a multiplier range applied to the fundamental peak bin.
type Range struct {
	Min float64
	Max float64
}

type OvertoneOptions struct {
	MinFrequency float64 `ini:"min_frequency"` // default 2000
	MaxFrequency float64 `ini:"max_frequency"` // inclusive, default 4000
	Overtones    []Range `ini:"-"`             // default 1.8-2.2 and 2.8-3.2
}

func DefaultOvertoneOptions() OvertoneOptions {
	return OvertoneOptions{
		MinFrequency: 2000,
		MaxFrequency: 4000,
		Overtones:    []Range{{Min: 1.8, Max: 2.2}, {Min: 2.8, Max: 3.2}},
	}
}

// OvertoneLadder searches the fundamental and each overtone range for its strongest bin.
type OvertoneLadder struct {
	opts   OvertoneOptions
	search types.Band // inclusive bounds
}

// NewOvertoneLadder resolves bin ranges for the stream. The widest overtone range must stay below Nyquist.
func NewOvertoneLadder(opts OvertoneOptions, sampleRate, windowSize int) (*OvertoneLadder, error) {
	def := DefaultOvertoneOptions()
	if opts.MinFrequency == 0 && opts.MaxFrequency == 0 {
		opts.MinFrequency, opts.MaxFrequency = def.MinFrequency, def.MaxFrequency
	}

	if opts.Overtones == nil {
		opts.Overtones = def.Overtones
	}

	if sampleRate <= 0 || opts.MinFrequency <= 0 || opts.MinFrequency > opts.MaxFrequency {
		return nil, fmt.Errorf("%w: [%v, %v] Hz at %d Hz", ErrBand, opts.MinFrequency, opts.MaxFrequency, sampleRate)
	}

	bins := windowSize/2 + 1
	search := types.Band{
		Begin: int(opts.MinFrequency * float64(windowSize) / float64(sampleRate)),
		End:   int(opts.MaxFrequency * float64(windowSize) / float64(sampleRate)),
	}

	highest := float64(search.End)
	for _, r := range opts.Overtones {
		if r.Min <= 0 || r.Min > r.Max {
			return nil, fmt.Errorf("%w: overtone range [%v, %v]", ErrBand, r.Min, r.Max)
		}

		highest = max(highest, float64(search.End)*r.Max)
	}

	if int(highest) >= bins {
		return nil, fmt.Errorf("%w: bin %d of %d at %d Hz", ErrNyquist, int(highest), bins, sampleRate)
	}

	return &OvertoneLadder{opts: opts, search: search}, nil
}

// Size returns the length of the feature vector: a (peak, mean) pair for the fundamental and each overtone.
func (o *OvertoneLadder) Size() int {
	return 2 * (len(o.opts.Overtones) + 1)
}

// Extract returns [peak0, mean0, peak1, mean1, ...] where mean is the average value of the searched range.
// It reports false when the fundamental range carries no energy.
func (o *OvertoneLadder) Extract(values []float64) (types.FeatureVector, bool) {
	out := make(types.FeatureVector, 0, o.Size())

	peak, peakValue, mean := strongest(values, o.search.Begin, o.search.End)
	if mean <= 0 {
		return nil, false
	}

	out = append(out, peakValue, mean)

	for _, r := range o.opts.Overtones {
		_, value, avg := strongest(values, int(float64(peak)*r.Min), int(float64(peak)*r.Max))
		out = append(out, value, avg)
	}

	return out, true
}

// strongest scans the inclusive range [lo, hi], clamped to the slice.
func strongest(values []float64, lo, hi int) (int, float64, float64) {
	lo = max(lo, 0)
	hi = min(hi, len(values)-1)

	if hi < lo {
		return lo, 0, 0
	}

	pos := lo

	var total float64

	for i := lo; i <= hi; i++ {
		total += values[i]
		if values[i] > values[pos] {
			pos = i
		}
	}

	return pos, values[pos], total / float64(hi-lo+1)
}
