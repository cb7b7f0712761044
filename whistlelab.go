// Package whistlelab builds whistle detectors by name and runs them over labeled corpora.
package whistlelab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/config"
	"github.com/farcloser/whistlelab/internal/detector"
	"github.com/farcloser/whistlelab/internal/evaluation"
	"github.com/farcloser/whistlelab/internal/types"
)

/*
Usage:

corpus, err := corpus.Load(ctx, "db.json", corpus.Options{})
result, err := whistlelab.Evaluate(ctx, whistlelab.AdaptiveHarmonic, nil, corpus)
fmt.Printf("%d/%d whistles, %d false positives\n", result.TruePositives, result.Positives, result.FalsePositives)

// Profile overrides, including trained models
profile, err := config.Load("profile.ini")
result, err := whistlelab.Evaluate(ctx, whistlelab.OvertoneLadder, profile, corpus)

// Training swaps the fitted model in and returns the detector
det, report, err := whistlelab.Train(ctx, whistlelab.AdaptiveHarmonic, nil, corpus, detector.DefaultTrainOptions())
err = classify.SaveFile("ah.json", det.Classifier())

*/

// New builds the detector for s. A nil profile means the defaults. When the profile names a model for s, the model
// replaces the built-in classifier; failing to load it is an error.
func New(s Strategy, profile *config.Profile) (*detector.Pipeline, error) {
	e, ok := registry[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}

	if profile == nil {
		profile = config.Default()
	}

	det, err := e.build(profile)
	if err != nil {
		return nil, err
	}

	if path, ok := profile.Models[s.String()]; ok && path != "" {
		if err = LoadModel(det, path); err != nil {
			return nil, err
		}
	}

	return det, nil
}

// LoadModel replaces the classifier of det with the model stored at path.
func LoadModel(det *detector.Pipeline, path string) error {
	model, err := classify.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading model for %s: %w", det.Name(), err)
	}

	if err = det.SetClassifier(model); err != nil {
		return fmt.Errorf("loading model for %s: %w", det.Name(), err)
	}

	slog.Debug("whistlelab.LoadModel", "detector", det.Name(), "kind", model.Kind(), "path", path)

	return nil
}

// EvaluationOptions returns the harness options of a profile. Configuration errors abort, other channel errors are
// skipped.
func EvaluationOptions(profile *config.Profile) evaluation.Options {
	if profile == nil {
		profile = config.Default()
	}

	return evaluation.Options{
		FalsePositiveWindow: profile.Evaluation.FalsePositiveWindow,
		Workers:             profile.Evaluation.Workers,
		Abort: func(err error) bool {
			return errors.Is(err, detector.ErrConfiguration)
		},
	}
}

// Evaluate runs one detector per worker over corpus.
func Evaluate(ctx context.Context, s Strategy, profile *config.Profile, corpus *types.Corpus) (*evaluation.Result, error) {
	factory := func() (evaluation.Detector, error) {
		return New(s, profile)
	}

	return evaluation.Run(ctx, factory, corpus, EvaluationOptions(profile))
}

// Train collects labeled examples from corpus and fits a classifier of opts.Kind. The returned detector uses the
// fitted model when the kind is trainable.
func Train(
	ctx context.Context,
	s Strategy,
	profile *config.Profile,
	corpus *types.Corpus,
	opts detector.TrainOptions,
) (*detector.Pipeline, *detector.TrainingReport, error) {
	det, err := New(s, profile)
	if err != nil {
		return nil, nil, err
	}

	examples, err := evaluation.CollectExamples(ctx, det, corpus)
	if err != nil {
		return nil, nil, err
	}

	report, err := det.Fit(examples, opts)
	if err != nil {
		return nil, nil, err
	}

	return det, report, nil
}
