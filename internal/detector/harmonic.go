package detector

import (
	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/types"
)

// HarmonicOptions configures the adaptive boundary detector with second harmonic analysis.
type HarmonicOptions struct {
	WindowSize int                  `ini:"window_size"` // default 4096
	Band       features.BandOptions `ini:"-"`
	Attack     int                  `ini:"attack"`  // default 2
	Release    int                  `ini:"release"` // default 2
	Backend    spectral.Backend     `ini:"-"`
	// Classifier overrides the default rule tree.
	Classifier classify.Classifier `ini:"-"`
}

func DefaultHarmonicOptions() HarmonicOptions {
	return HarmonicOptions{
		WindowSize: 4096,
		Band:       features.DefaultBandOptions(),
		Attack:     2,
		Release:    2,
	}
}

// DefaultHarmonicTree is the hand tuned rule tree over
// [peak amplitude, fundamental/stop, harmonic/stop, combined/stop].
func DefaultHarmonicTree() *classify.Tree {
	return &classify.Tree{Root: classify.Split(0, 0.002,
		classify.Leaf(false),
		classify.Split(1, 30,
			classify.Split(2, 3,
				classify.Leaf(false),
				classify.Split(3, 10, classify.Leaf(false), classify.Leaf(true)),
			),
			classify.Leaf(true),
		),
	)}
}

// NewHarmonic returns the four feature adaptive boundary detector. Amplitudes are normalized by half the window so
// a full scale sine peaks near 1.
func NewHarmonic(opts HarmonicOptions) (*Pipeline, error) {
	if opts.WindowSize == 0 {
		opts.WindowSize = DefaultHarmonicOptions().WindowSize
	}

	if opts.Band == (features.BandOptions{}) {
		opts.Band = features.DefaultBandOptions()
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultHarmonicTree()
	}

	return New(Config{
		Name:       "adaptive-harmonic",
		WindowSize: fixedWindow(opts.WindowSize),
		Hann:       true,
		Scale: func(windowSize, _ int) float64 {
			return 2 / float64(windowSize)
		},
		Backend:    opts.Backend,
		Extractor:  &harmonicExtractor{opts: opts.Band},
		Classifier: classifier,
		Integrator: attackRelease(opts.Attack, opts.Release),
	})
}

type harmonicExtractor struct {
	opts       features.BandOptions
	extractor  *features.BandExtractor
	magnitudes []float64
}

func (e *harmonicExtractor) Size() int {
	return 4
}

func (e *harmonicExtractor) Prepare(sampleRate, windowSize int) error {
	ext, err := features.NewBandExtractor(e.opts, sampleRate, windowSize)
	if err != nil {
		return err
	}

	e.extractor = ext

	return nil
}

func (e *harmonicExtractor) Extract(_ []float64, spec *spectral.Spectrum) Extraction {
	e.magnitudes = spec.Magnitudes(e.magnitudes)

	res, ok := e.extractor.Extract(e.magnitudes)
	if !ok {
		return Extraction{Status: StatusDegenerate}
	}

	return Extraction{Features: types.FeatureVector(res.Features), Volume: res.PeakValue}
}
