package detector

import (
	"fmt"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/temporal"
	"github.com/farcloser/whistlelab/internal/types"
)

// PeakRatioOptions configures a detector comparing in-band power with the power above the band.
type PeakRatioOptions struct {
	WindowSize   int              `ini:"window_size"`   // default 1024
	MinFrequency float64          `ini:"min_frequency"` // default 2000
	MaxFrequency float64          `ini:"max_frequency"` // default 4000
	Threshold    float64          `ini:"threshold"`     // minimum band over stop band ratio (default 2)
	Attack       int              `ini:"attack"`        // default 2
	Release      int              `ini:"release"`       // default 2
	Backend      spectral.Backend `ini:"-"`
}

func DefaultPeakRatioOptions() PeakRatioOptions {
	return PeakRatioOptions{
		WindowSize:   1024,
		MinFrequency: 2000,
		MaxFrequency: 4000,
		Threshold:    2,
		Attack:       2,
		Release:      2,
	}
}

// NewPeakRatio returns the single feature band ratio detector.
func NewPeakRatio(opts PeakRatioOptions) (*Pipeline, error) {
	def := DefaultPeakRatioOptions()
	if opts.WindowSize == 0 {
		opts.WindowSize = def.WindowSize
	}

	if opts.MinFrequency == 0 && opts.MaxFrequency == 0 {
		opts.MinFrequency, opts.MaxFrequency = def.MinFrequency, def.MaxFrequency
	}

	if opts.Threshold == 0 {
		opts.Threshold = def.Threshold
	}

	return New(Config{
		Name:       "peak-ratio",
		WindowSize: fixedWindow(opts.WindowSize),
		// Power spectral density: divide by the frequency resolution.
		Scale: func(windowSize, sampleRate int) float64 {
			return float64(windowSize) / float64(sampleRate)
		},
		Backend:    opts.Backend,
		Extractor:  &peakRatioExtractor{opts: opts},
		Classifier: classify.Thresholds{{Feature: 0, Min: opts.Threshold}},
		Integrator: attackRelease(opts.Attack, opts.Release),
	})
}

type peakRatioExtractor struct {
	opts   PeakRatioOptions
	band   types.Band
	powers []float64
}

func (e *peakRatioExtractor) Size() int {
	return 1
}

func (e *peakRatioExtractor) Prepare(sampleRate, windowSize int) error {
	bins := windowSize/2 + 1
	e.band = types.Band{
		Begin: spectral.BinIndex(e.opts.MinFrequency, sampleRate, windowSize),
		End:   spectral.BinIndex(e.opts.MaxFrequency, sampleRate, windowSize),
	}

	if e.band.Len() == 0 {
		return fmt.Errorf("%w: [%v, %v) Hz", features.ErrBand, e.opts.MinFrequency, e.opts.MaxFrequency)
	}

	if e.band.End >= bins {
		return fmt.Errorf("%w: %v Hz at %d Hz", features.ErrNyquist, e.opts.MaxFrequency, sampleRate)
	}

	return nil
}

func (e *peakRatioExtractor) Extract(_ []float64, spec *spectral.Spectrum) Extraction {
	e.powers = spec.Powers(e.powers)

	ratio, ok := features.BandRatio(e.powers, e.band)
	if !ok {
		return Extraction{Status: StatusDegenerate}
	}

	return Extraction{Features: types.FeatureVector{ratio}}
}

func fixedWindow(size int) func(int) int {
	return func(int) int { return size }
}

func attackRelease(attack, release int) func(int, int) temporal.Integrator {
	return func(_, windowSize int) temporal.Integrator {
		return &temporal.AttackRelease{BlockSize: windowSize, Attack: attack, Release: release}
	}
}
