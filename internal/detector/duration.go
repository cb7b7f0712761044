package detector

import (
	"fmt"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/temporal"
	"github.com/farcloser/whistlelab/internal/types"
)

// DurationOptions configures the smoothed peak frequency detector with a minimum duration and volume.
type DurationOptions struct {
	BlockMs     int              `ini:"block_ms"`      // default 50
	ThresholdHz float64          `ini:"threshold_hz"`  // minimum peak frequency (default 2000)
	MinVolumeDb float64          `ini:"min_volume_db"` // default -20
	MinLengthMs int              `ini:"min_length_ms"` // default 400
	Smoothing   int              `ini:"smoothing"`     // bins averaged per group (default 3)
	Backend     spectral.Backend `ini:"-"`
}

func DefaultDurationOptions() DurationOptions {
	return DurationOptions{
		BlockMs:     50,
		ThresholdHz: 2000,
		MinVolumeDb: -20,
		MinLengthMs: 400,
		Smoothing:   3,
	}
}

// NewDuration returns the two feature detector: [smoothed peak frequency in Hz, block peak level in dBFS].
// Zero fields take their defaults, so a 0 dBFS volume floor cannot be requested.
func NewDuration(opts DurationOptions) (*Pipeline, error) {
	def := DefaultDurationOptions()
	if opts.BlockMs == 0 {
		opts.BlockMs = def.BlockMs
	}

	if opts.ThresholdHz == 0 {
		opts.ThresholdHz = def.ThresholdHz
	}

	if opts.MinVolumeDb == 0 {
		opts.MinVolumeDb = def.MinVolumeDb
	}

	if opts.MinLengthMs == 0 {
		opts.MinLengthMs = def.MinLengthMs
	}

	if opts.Smoothing == 0 {
		opts.Smoothing = def.Smoothing
	}

	return New(Config{
		Name: "peak-duration",
		WindowSize: func(sampleRate int) int {
			// The transform needs an even block.
			return (sampleRate * opts.BlockMs / 1000) &^ 1
		},
		Backend:    opts.Backend,
		Extractor:  &durationExtractor{opts: opts},
		Classifier: classify.Thresholds{{Feature: 0, Min: opts.ThresholdHz}},
		Integrator: func(sampleRate, windowSize int) temporal.Integrator {
			return &temporal.Simple{
				BlockSize: windowSize,
				MinLength: int64(sampleRate) * int64(opts.MinLengthMs) / 1000,
				MinVolume: opts.MinVolumeDb,
			}
		},
	})
}

type durationExtractor struct {
	opts       DurationOptions
	magnitudes []float64
}

func (e *durationExtractor) Size() int {
	return 2
}

func (e *durationExtractor) Prepare(sampleRate, _ int) error {
	if e.opts.ThresholdHz >= float64(sampleRate)/2 {
		return fmt.Errorf("%w: %v Hz at %d Hz", features.ErrNyquist, e.opts.ThresholdHz, sampleRate)
	}

	return nil
}

func (e *durationExtractor) Extract(block []float64, spec *spectral.Spectrum) Extraction {
	e.magnitudes = spec.Magnitudes(e.magnitudes)

	level := features.PeakDb(block)
	peak := spec.Frequency(features.SmoothedPeak(e.magnitudes, e.opts.Smoothing))

	return Extraction{Features: types.FeatureVector{peak, level}, Volume: level}
}
