package detector

import (
	"fmt"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/temporal"
	"github.com/farcloser/whistlelab/internal/types"
)

// BackgroundOptions configures the background growth detector. The whistle band is trimmed of buckets that look like
// background and the remainder is compared with a threshold derived from the spectrum statistics, optionally also
// from the medians of the last second.
type BackgroundOptions struct {
	WindowSize          int              `ini:"window_size"`          // default 1024
	MinFrequency        float64          `ini:"min_frequency"`        // default 2000
	MaxFrequency        float64          `ini:"max_frequency"`        // default 4000
	BackgroundThreshold float64          `ini:"background_threshold"` // stddevs above the mean (default 0.7)
	SpectrumThreshold   float64          `ini:"spectrum_threshold"`   // default 2.5
	TemporalThreshold   float64          `ini:"temporal_threshold"`   // default 5
	Buckets             int              `ini:"buckets"`              // default 10
	OkayTime            float64          `ini:"okay_time"`            // seconds of accepted blocks (default 0.25)
	MissTime            float64          `ini:"miss_time"`            // seconds of tolerated misses (default 0.083)
	UseHistory          bool             `ini:"use_history"`          // default true
	Backend             spectral.Backend `ini:"-"`
}

func DefaultBackgroundOptions() BackgroundOptions {
	return BackgroundOptions{
		WindowSize:          1024,
		MinFrequency:        2000,
		MaxFrequency:        4000,
		BackgroundThreshold: 0.7,
		SpectrumThreshold:   2.5,
		TemporalThreshold:   5,
		Buckets:             10,
		OkayTime:            0.25,
		MissTime:            0.083,
		UseHistory:          true,
	}
}

// NewBackground returns the two feature background growth detector: [filtered band mean, whistle threshold].
func NewBackground(opts BackgroundOptions) (*Pipeline, error) {
	def := DefaultBackgroundOptions()
	if opts.WindowSize == 0 {
		opts.WindowSize = def.WindowSize
	}

	if opts.MinFrequency == 0 && opts.MaxFrequency == 0 {
		opts.MinFrequency, opts.MaxFrequency = def.MinFrequency, def.MaxFrequency
	}

	if opts.Buckets == 0 {
		opts.Buckets = def.Buckets
	}

	if opts.OkayTime == 0 {
		opts.OkayTime = def.OkayTime
	}

	if opts.MissTime == 0 {
		opts.MissTime = def.MissTime
	}

	return New(Config{
		Name:       "background-growth",
		WindowSize: fixedWindow(opts.WindowSize),
		Backend:    opts.Backend,
		Extractor:  &backgroundExtractor{opts: opts},
		Classifier: classify.Ratios{{Feature: 0, Reference: 1, Multiplier: 1}},
		Integrator: func(sampleRate, windowSize int) temporal.Integrator {
			return &temporal.Statistical{
				BlockSize: windowSize,
				Okay:      blocksFor(opts.OkayTime, sampleRate, windowSize),
				Miss:      blocksFor(opts.MissTime, sampleRate, windowSize),
			}
		},
	})
}

// blocksFor rounds a duration to a number of blocks, never less than one.
func blocksFor(seconds float64, sampleRate, windowSize int) int {
	return max(int(seconds*float64(sampleRate)/float64(windowSize)+0.5), 1)
}

type spectrumStats struct {
	mean   float64
	stdDev float64
}

type backgroundExtractor struct {
	opts       BackgroundOptions
	band       types.Band
	history    *temporal.Ring[spectrumStats]
	scratch    []float64
	magnitudes []float64
}

func (e *backgroundExtractor) Size() int {
	return 2
}

func (e *backgroundExtractor) Prepare(sampleRate, windowSize int) error {
	bins := windowSize/2 + 1
	e.band = types.Band{
		Begin: int(e.opts.MinFrequency * float64(windowSize) / float64(sampleRate)),
		End:   int(e.opts.MaxFrequency * float64(windowSize) / float64(sampleRate)),
	}

	if e.band.Len() == 0 {
		return fmt.Errorf("%w: [%v, %v) Hz", features.ErrBand, e.opts.MinFrequency, e.opts.MaxFrequency)
	}

	if e.band.End >= bins {
		return fmt.Errorf("%w: %v Hz at %d Hz", features.ErrNyquist, e.opts.MaxFrequency, sampleRate)
	}

	// Roughly one second of block statistics.
	e.history = temporal.NewRing[spectrumStats](max((sampleRate+windowSize/2)/windowSize, 1))
	e.scratch = make([]float64, 0, e.history.Cap())

	return nil
}

func (e *backgroundExtractor) Extract(_ []float64, spec *spectral.Spectrum) Extraction {
	e.magnitudes = spec.Magnitudes(e.magnitudes)

	mean, stdDev := features.Stats(e.magnitudes)
	threshold := mean + e.opts.SpectrumThreshold*stdDev

	if e.opts.UseHistory {
		// Nothing is decided until the history holds a full second.
		if _, evicted := e.history.Push(spectrumStats{mean: mean, stdDev: stdDev}); !evicted {
			return Extraction{Status: StatusWarmup}
		}

		medMean := temporal.Median(e.history, func(s spectrumStats) float64 { return s.mean }, e.scratch)
		medStdDev := temporal.Median(e.history, func(s spectrumStats) float64 { return s.stdDev }, e.scratch)
		threshold = max(threshold, medMean+e.opts.TemporalThreshold*medStdDev)
	}

	band := features.GrowBackground(e.magnitudes, e.band, mean+e.opts.BackgroundThreshold*stdDev, e.opts.Buckets)
	if band.Len() == 0 {
		return Extraction{Status: StatusDegenerate}
	}

	filtered := features.Mean(e.magnitudes, band)

	return Extraction{Features: types.FeatureVector{filtered, threshold}, Volume: filtered}
}
