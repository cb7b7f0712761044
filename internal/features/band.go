// Package features computes per-block feature vectors from magnitude or power spectra.
package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	ErrBand    = errors.New("invalid frequency band")
	ErrNyquist = errors.New("frequency band reaches the Nyquist limit")
)

// Boundary selects how the fundamental band is sized around its peak.
type Boundary int

const (
	// BoundaryAdaptive walks outward from the peak until the value drops below MinRatio of the peak.
	BoundaryAdaptive Boundary = iota
	// BoundaryFixed uses a static fraction of the search band width on each side of the peak.
	BoundaryFixed
)

func (b Boundary) String() string {
	if b == BoundaryFixed {
		return "fixed"
	}

	return "adaptive"
}

// ParseBoundary accepts "adaptive" and "fixed".
func ParseBoundary(name string) (Boundary, error) {
	switch name {
	case "adaptive", "":
		return BoundaryAdaptive, nil
	case "fixed":
		return BoundaryFixed, nil
	default:
		return BoundaryAdaptive, fmt.Errorf("%w: unknown boundary %q", ErrBand, name)
	}
}

type BandOptions struct {
	MinFrequency       float64  `ini:"min_frequency"` // lower edge of the fundamental search band, Hz (default 2000)
	MaxFrequency       float64  `ini:"max_frequency"` // upper edge, exclusive, Hz (default 5000)
	MinPeak            float64  `ini:"min_peak"`      // the peak must exceed this floor
	Boundary           Boundary `ini:"-"`
	FixedFraction      float64  `ini:"fixed_fraction"`      // half-width fraction of the search band for BoundaryFixed (default 0.25)
	MinRatio           float64  `ini:"min_ratio"`           // stop ratio for BoundaryAdaptive (default 0.01)
	HarmonicMultiplier float64  `ini:"harmonic_multiplier"` // harmonic center relative to the peak bin (default 2)
	HarmonicWidth      float64  `ini:"harmonic_width"`      // harmonic half-width relative to the fundamental width (default 0.25)
}

func DefaultBandOptions() BandOptions {
	return BandOptions{
		MinFrequency:       2000,
		MaxFrequency:       5000,
		MinPeak:            0.001,
		Boundary:           BoundaryAdaptive,
		FixedFraction:      0.25,
		MinRatio:           0.01,
		HarmonicMultiplier: 2,
		HarmonicWidth:      0.25,
	}
}

// BandResult describes the bands located in one spectrum.
type BandResult struct {
	Peak        int
	PeakValue   float64
	Fundamental types.Band
	Harmonic    types.Band
	Stop        [2]types.Band
	Features    types.FeatureVector
}

// BandExtractor locates the fundamental and harmonic bands of a whistle candidate.
// Extract is a pure function of its input.
type BandExtractor struct {
	opts   BandOptions
	search types.Band
}

// NewBandExtractor resolves the search band for the given stream and validates it against the Nyquist limit.
func NewBandExtractor(opts BandOptions, sampleRate, windowSize int) (*BandExtractor, error) {
	if opts.MinFrequency == 0 && opts.MaxFrequency == 0 {
		def := DefaultBandOptions()
		opts.MinFrequency, opts.MaxFrequency = def.MinFrequency, def.MaxFrequency
	}

	if opts.FixedFraction == 0 {
		opts.FixedFraction = 0.25
	}

	if opts.MinRatio == 0 {
		opts.MinRatio = 0.01
	}

	if opts.HarmonicMultiplier == 0 {
		opts.HarmonicMultiplier = 2
	}

	if opts.HarmonicWidth == 0 {
		opts.HarmonicWidth = 0.25
	}

	if sampleRate <= 0 || opts.MinFrequency < 0 || opts.MinFrequency >= opts.MaxFrequency {
		return nil, fmt.Errorf("%w: [%v, %v) Hz at %d Hz", ErrBand, opts.MinFrequency, opts.MaxFrequency, sampleRate)
	}

	bins := windowSize/2 + 1
	search := types.Band{
		Begin: max(spectral.BinIndex(opts.MinFrequency, sampleRate, windowSize), 1),
		End:   spectral.BinIndex(opts.MaxFrequency, sampleRate, windowSize),
	}

	if search.End >= bins {
		return nil, fmt.Errorf("%w: bin %d of %d (%v Hz at %d Hz)", ErrNyquist, search.End, bins, opts.MaxFrequency, sampleRate)
	}

	if search.Len() == 0 {
		return nil, fmt.Errorf("%w: empty search band at window %d", ErrBand, windowSize)
	}

	return &BandExtractor{opts: opts, search: search}, nil
}

// Search returns the resolved fundamental search band.
func (e *BandExtractor) Search() types.Band {
	return e.search
}

// Extract computes the band features. It returns false when no bin of the search band exceeds the peak floor or
// when the stop band carries no energy.
func (e *BandExtractor) Extract(values []float64) (BandResult, bool) {
	n := len(values)
	search := e.search.Clamp(1, n)

	peak := 0
	peakValue := e.opts.MinPeak

	for i := search.Begin; i < search.End; i++ {
		if values[i] > peakValue {
			peakValue = values[i]
			peak = i
		}
	}

	if peak == 0 {
		return BandResult{}, false
	}

	var (
		fundamental types.Band
		power       float64
	)

	switch e.opts.Boundary {
	case BoundaryFixed:
		half := int(e.opts.FixedFraction * float64(search.Len()))
		fundamental = types.Band{Begin: peak - half, End: peak + half + 1}.Clamp(1, n)
		power = floats.Sum(values[fundamental.Begin:fundamental.End])
	default:
		fundamental, power = e.walk(values, peak, search.Len()/2)
	}

	width := fundamental.Len()
	center := int(float64(peak)*e.opts.HarmonicMultiplier + 0.5)
	spread := int(float64(width) * e.opts.HarmonicWidth)
	harmonic := types.Band{Begin: center - spread, End: center + spread}.Clamp(fundamental.End, n)

	stop := [2]types.Band{
		{Begin: fundamental.End, End: harmonic.Begin},
		{Begin: harmonic.End, End: n},
	}

	w0 := power / float64(max(width, 1))
	w1 := sum(values, harmonic) / float64(max(harmonic.Len(), 1))
	s0 := sum(values, stop[0]) / float64(max(stop[0].Len(), 1))
	s1 := sum(values, stop[1]) / float64(max(stop[1].Len(), 1))

	if s0 <= 0 {
		return BandResult{}, false
	}

	return BandResult{
		Peak:        peak,
		PeakValue:   peakValue,
		Fundamental: fundamental,
		Harmonic:    harmonic,
		Stop:        stop,
		Features:    types.FeatureVector{peakValue, w0 / s0, w1 / s0, (w0 + w1) / (s0 + s1)},
	}, true
}

// walk grows the band around peak in both directions. A side that reaches its search limit without dropping below
// the stop ratio falls back to the earliest local minimum seen on that side. The returned power is the sum over the
// band.
func (e *BandExtractor) walk(values []float64, peak, half int) (types.Band, float64) {
	n := len(values)
	cutoff := values[peak] * e.opts.MinRatio
	lowerLimit := max(peak-half, 1)
	upperLimit := min(peak+half, n)

	power := values[peak]

	lower := peak - 1
	lowerAtMin, powerAtLowerMin := -1, 0.0
	minLower := math.Inf(1)

	for ; lower > lowerLimit; lower-- {
		power += values[lower]
		if values[lower] < cutoff {
			break
		}

		if values[lower] < minLower {
			minLower = values[lower]
			lowerAtMin = lower
			powerAtLowerMin = power
		}
	}

	if lower <= lowerLimit {
		if lowerAtMin >= 0 {
			lower = lowerAtMin
			power = powerAtLowerMin
		} else {
			lower = peak
			power = values[peak]
		}
	}

	lowerPower := power

	upper := peak + 1
	upperAtMin, powerAtUpperMin := -1, 0.0
	minUpper := math.Inf(1)

	// The upper bound is exclusive: a bin only adds to power once the walk moves past it.
	for ; upper < upperLimit; upper++ {
		if values[upper] < cutoff {
			break
		}

		if values[upper] < minUpper {
			minUpper = values[upper]
			upperAtMin = upper
			powerAtUpperMin = power
		}

		power += values[upper]
	}

	if upper >= upperLimit {
		if upperAtMin >= 0 {
			upper = upperAtMin
			power = powerAtUpperMin
		} else {
			upper = min(peak+1, n)
			power = lowerPower
		}
	}

	return types.Band{Begin: lower, End: upper}, power
}

func sum(values []float64, band types.Band) float64 {
	if band.Len() == 0 {
		return 0
	}

	return floats.Sum(values[band.Begin:band.End])
}
