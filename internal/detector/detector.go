// Package detector composes spectral analysis, feature extraction, classification and temporal integration into
// complete whistle detectors.
package detector

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/spectral"
	"github.com/farcloser/whistlelab/internal/temporal"
	"github.com/farcloser/whistlelab/internal/types"
)

// ErrConfiguration is returned before any block is processed when the detector cannot run at the stream's sample
// rate.
var ErrConfiguration = errors.New("invalid detector configuration")

// Detector consumes one channel and reports confirmed whistles. A detector instance must not be used from more than
// one goroutine at a time.
type Detector interface {
	Name() string
	// Prepare validates the configuration for the sample rate and resets all per-stream state.
	Prepare(sampleRate int) error
	// Run reads full blocks from src until it runs dry and calls report once per confirmed whistle.
	Run(src types.SampleSource, report types.Reporter) error
}

// Trainer is a detector whose classifier can be fitted from labeled data.
type Trainer interface {
	Detector
	Collect(src types.SampleSource, labels types.Labeler) ([]types.TrainingExample, error)
	Fit(examples []types.TrainingExample, opts TrainOptions) (*TrainingReport, error)
}

// Status of one feature extraction.
type Status int

const (
	// StatusOK carries a feature vector.
	StatusOK Status = iota
	// StatusDegenerate means the block cannot be a whistle (no peak, silent stop band).
	StatusDegenerate
	// StatusWarmup means the extractor is still filling its history; the block is ignored.
	StatusWarmup
)

// Extraction is the per-block output of an Extractor.
type Extraction struct {
	Status   Status
	Features types.FeatureVector
	Volume   float64
}

// Extractor computes a feature vector from a spectrum and, where needed, the raw block.
// Extract must return a freshly allocated feature vector.
type Extractor interface {
	Prepare(sampleRate, windowSize int) error
	Extract(block []float64, spec *spectral.Spectrum) Extraction
	Size() int
}

// Config describes how a Pipeline is assembled.
type Config struct {
	Name       string
	WindowSize func(sampleRate int) int
	Hann       bool
	// Scale returns the spectrum scale for the window size and sample rate. Nil means 1.
	Scale      func(windowSize, sampleRate int) float64
	Backend    spectral.Backend
	Extractor  Extractor
	Classifier classify.Classifier
	Integrator func(sampleRate, windowSize int) temporal.Integrator
}

// Pipeline is the generic detector: frontend, extractor, classifier, integrator.
type Pipeline struct {
	cfg Config

	sampleRate int
	front      *spectral.Frontend
	integrator temporal.Integrator
	block      []float64
}

// New assembles a pipeline. Configuration problems that depend on the sample rate surface in Prepare.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Name == "" || cfg.WindowSize == nil || cfg.Extractor == nil || cfg.Classifier == nil || cfg.Integrator == nil {
		return nil, fmt.Errorf("%w: incomplete pipeline %q", ErrConfiguration, cfg.Name)
	}

	return &Pipeline{cfg: cfg}, nil
}

func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Features returns the length of the feature vectors this pipeline produces.
func (p *Pipeline) Features() int {
	return p.cfg.Extractor.Size()
}

// WindowSize returns the block length used at the given sample rate.
func (p *Pipeline) WindowSize(sampleRate int) int {
	return p.cfg.WindowSize(sampleRate)
}

// Classifier returns the classifier currently in use.
func (p *Pipeline) Classifier() classify.Classifier {
	return p.cfg.Classifier
}

// SetClassifier swaps the classifier, typically for one loaded from disk.
func (p *Pipeline) SetClassifier(c classify.Classifier) error {
	if c == nil {
		return fmt.Errorf("%w: nil classifier", ErrConfiguration)
	}

	if sized, ok := c.(classify.Sized); ok && sized.Inputs() != p.Features() {
		return fmt.Errorf("%w: %s expects %d features, %s produces %d",
			classify.ErrFeatureCount, c.Kind(), sized.Inputs(), p.cfg.Name, p.Features())
	}

	p.cfg.Classifier = c

	return nil
}

func (p *Pipeline) Prepare(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, sampleRate)
	}

	size := p.cfg.WindowSize(sampleRate)

	scale := 1.0
	if p.cfg.Scale != nil {
		scale = p.cfg.Scale(size, sampleRate)
	}

	want := spectral.Options{
		WindowSize: size,
		SampleRate: sampleRate,
		Hann:       p.cfg.Hann,
		Scale:      scale,
		Backend:    p.cfg.Backend,
	}

	// The transform plan is only rebuilt when the stream shape changes.
	if p.front == nil || p.front.Options() != want {
		front, err := spectral.New(want)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfiguration, p.cfg.Name, err)
		}

		p.front = front
		p.block = make([]float64, size)
	}

	if err := p.cfg.Extractor.Prepare(sampleRate, size); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfiguration, p.cfg.Name, err)
	}

	p.integrator = p.cfg.Integrator(sampleRate, size)
	p.sampleRate = sampleRate

	return nil
}

func (p *Pipeline) Run(src types.SampleSource, report types.Reporter) error {
	if err := p.Prepare(src.SampleRate()); err != nil {
		return err
	}

	// Whatever is still accumulating when the stream runs dry is dropped.
	defer p.integrator.Reset()

	for src.Read(p.block) == len(p.block) {
		verdict, ok := p.step()
		if !ok {
			continue
		}

		switch ev := p.integrator.Update(verdict); ev.Kind {
		case temporal.Start:
			report.Report(-ev.Lookback)
		case temporal.End:
			slog.Debug("detector.Run", "detector", p.cfg.Name, "stage", "whistle end")
		default:
		}
	}

	return nil
}

func (p *Pipeline) step() (types.Verdict, bool) {
	ext := p.extract()

	switch ext.Status {
	case StatusWarmup:
		return types.Verdict{}, false
	case StatusDegenerate:
		return types.Verdict{Volume: ext.Volume}, true
	default:
		return types.Verdict{Whistle: p.cfg.Classifier.Classify(ext.Features), Volume: ext.Volume}, true
	}
}

func (p *Pipeline) extract() Extraction {
	spec, err := p.front.Transform(p.block)
	if err != nil {
		// Blocks are always sized by the frontend itself.
		return Extraction{Status: StatusDegenerate}
	}

	return p.cfg.Extractor.Extract(p.block, spec)
}
