package detector

import (
	"fmt"
	"log/slog"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/types"
)

type TrainOptions struct {
	// Kind selects the model to fit. Rule kinds only produce an exported table.
	Kind    classify.Kind
	Network classify.NetworkOptions
	Linear  classify.LinearOptions
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Kind:    classify.KindNetwork,
		Network: classify.DefaultNetworkOptions(),
		Linear:  classify.DefaultLinearOptions(),
	}
}

// TrainingReport describes one training pass.
type TrainingReport struct {
	Detector  string
	Kind      classify.Kind
	Examples  int
	Positives int
	// Swapped is true when the detector now uses the freshly fitted classifier.
	Swapped bool
	Fit     classify.FitReport
	Table   *classify.Table
}

// Collect runs the pipeline over src, recording one example per feature vector instead of classifying it. A block
// is labeled by whether its midpoint lies inside a ground truth whistle.
func (p *Pipeline) Collect(src types.SampleSource, labels types.Labeler) ([]types.TrainingExample, error) {
	if err := p.Prepare(src.SampleRate()); err != nil {
		return nil, err
	}

	var examples []types.TrainingExample

	midpoint := -int64(len(p.block) / 2)

	for src.Read(p.block) == len(p.block) {
		ext := p.extract()
		if ext.Status != StatusOK {
			continue
		}

		examples = append(examples, types.TrainingExample{
			Features: ext.Features,
			Whistle:  labels.InsideWhistle(midpoint),
		})
	}

	return examples, nil
}

// Fit trains a classifier of opts.Kind on the examples. The current classifier is only replaced on success.
func (p *Pipeline) Fit(examples []types.TrainingExample, opts TrainOptions) (*TrainingReport, error) {
	if opts.Kind == "" {
		opts.Kind = classify.KindNetwork
	}

	table, err := classify.NewTable(p.cfg.Name, examples)
	if err != nil {
		return nil, fmt.Errorf("training %s: %w", p.cfg.Name, err)
	}

	if table.Features != p.Features() {
		return nil, fmt.Errorf("training %s: %w: got %d, want %d", p.cfg.Name, classify.ErrFeatureCount, table.Features, p.Features())
	}

	report := &TrainingReport{
		Detector:  p.cfg.Name,
		Kind:      opts.Kind,
		Examples:  len(examples),
		Positives: table.Positives(),
		Table:     table,
	}

	var trained classify.Classifier

	switch opts.Kind {
	case classify.KindNetwork:
		trained, report.Fit, err = classify.FitNetwork(examples, opts.Network)
	case classify.KindLinear:
		trained, report.Fit, err = classify.FitLinear(examples, opts.Linear)
	default:
		// Rule based classifiers are learned offline from the exported table.
		report.Fit.Accuracy = classify.Accuracy(p.cfg.Classifier, examples)

		return report, nil
	}

	if err != nil {
		return nil, fmt.Errorf("training %s: %w", p.cfg.Name, err)
	}

	p.cfg.Classifier = trained
	report.Swapped = true

	slog.Debug("detector.Fit", "detector", p.cfg.Name, "kind", opts.Kind, "examples", report.Examples,
		"epochs", report.Fit.Epochs, "accuracy", report.Fit.Accuracy)

	return report, nil
}
