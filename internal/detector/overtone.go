package detector

import (
	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
)

// OvertoneOptions configures the fundamental plus overtone ladder detector.
type OvertoneOptions struct {
	WindowSize int                      `ini:"window_size"` // default 1024
	Ladder     features.OvertoneOptions `ini:"-"`
	// MinAmplitudes holds the minimum peak amplitude of the fundamental followed by each overtone.
	MinAmplitudes []float64 `ini:"min_amplitudes" delim:","` // default 35, 2, 2
	// RatioMultiplier is how many times its range mean each peak must exceed.
	RatioMultiplier float64          `ini:"ratio_multiplier"` // default 3
	Attack          int              `ini:"attack"`           // default 2
	Release         int              `ini:"release"`          // default 2
	Backend         spectral.Backend `ini:"-"`
}

func DefaultOvertoneOptions() OvertoneOptions {
	return OvertoneOptions{
		WindowSize:      1024,
		Ladder:          features.DefaultOvertoneOptions(),
		MinAmplitudes:   []float64{35, 2, 2},
		RatioMultiplier: 3,
		Attack:          2,
		Release:         2,
	}
}

// NewOvertone returns the six feature overtone ladder detector.
func NewOvertone(opts OvertoneOptions) (*Pipeline, error) {
	def := DefaultOvertoneOptions()
	if opts.WindowSize == 0 {
		opts.WindowSize = def.WindowSize
	}

	if opts.Ladder.Overtones == nil {
		opts.Ladder.Overtones = def.Ladder.Overtones
	}

	if opts.MinAmplitudes == nil {
		opts.MinAmplitudes = def.MinAmplitudes
	}

	if opts.RatioMultiplier == 0 {
		opts.RatioMultiplier = def.RatioMultiplier
	}

	levels := len(opts.Ladder.Overtones) + 1

	var (
		thresholds classify.Thresholds
		ratios     classify.Ratios
	)

	for level := range levels {
		peak, mean := 2*level, 2*level+1
		if level < len(opts.MinAmplitudes) {
			thresholds = append(thresholds, classify.Threshold{Feature: peak, Min: opts.MinAmplitudes[level]})
		}

		ratios = append(ratios, classify.Ratio{Feature: peak, Reference: mean, Multiplier: opts.RatioMultiplier})
	}

	return New(Config{
		Name:       "overtone-ladder",
		WindowSize: fixedWindow(opts.WindowSize),
		Hann:       true,
		Backend:    opts.Backend,
		Extractor:  &overtoneExtractor{opts: opts.Ladder},
		Classifier: classify.All{thresholds, ratios},
		Integrator: attackRelease(opts.Attack, opts.Release),
	})
}

type overtoneExtractor struct {
	opts       features.OvertoneOptions
	ladder     *features.OvertoneLadder
	magnitudes []float64
}

func (e *overtoneExtractor) Size() int {
	return 2 * (len(e.opts.Overtones) + 1)
}

func (e *overtoneExtractor) Prepare(sampleRate, windowSize int) error {
	ladder, err := features.NewOvertoneLadder(e.opts, sampleRate, windowSize)
	if err != nil {
		return err
	}

	e.ladder = ladder

	return nil
}

func (e *overtoneExtractor) Extract(_ []float64, spec *spectral.Spectrum) Extraction {
	e.magnitudes = spec.Magnitudes(e.magnitudes)

	vec, ok := e.ladder.Extract(e.magnitudes)
	if !ok {
		return Extraction{Status: StatusDegenerate}
	}

	return Extraction{Features: vec, Volume: vec[0]}
}
