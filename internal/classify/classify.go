// Package classify maps feature vectors to whistle verdicts.
package classify

import (
	"errors"
	"fmt"

	"github.com/farcloser/whistlelab/internal/types"
)

var (
	ErrNoExamples    = errors.New("no training examples")
	ErrFeatureCount  = errors.New("feature count mismatch")
	ErrInvalidModel  = errors.New("invalid model")
	ErrNotTrainable  = errors.New("classifier kind cannot be trained")
	ErrUnknownKind   = errors.New("unknown classifier kind")
	ErrExport        = errors.New("failed writing training table")
	errNilClassifier = errors.New("nil classifier")
)

// Kind names a classifier family.
type Kind string

const (
	KindTree       Kind = "tree"
	KindThresholds Kind = "thresholds"
	KindRatios     Kind = "ratios"
	KindAll        Kind = "all"
	KindLinear     Kind = "linear"
	KindNetwork    Kind = "network"
)

// Trainable reports whether FitNetwork or FitLinear produce this kind.
func (k Kind) Trainable() bool {
	return k == KindLinear || k == KindNetwork
}

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case KindTree, KindThresholds, KindRatios, KindAll, KindLinear, KindNetwork:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Classifier decides whether a feature vector describes a whistle.
type Classifier interface {
	Classify(features types.FeatureVector) bool
	Kind() Kind
}

// Sized is implemented by classifiers bound to a fixed feature count.
type Sized interface {
	Inputs() int
}

// Accuracy returns the share of examples the classifier labels correctly.
func Accuracy(c Classifier, examples []types.TrainingExample) float64 {
	if len(examples) == 0 {
		return 0
	}

	var correct int

	for _, ex := range examples {
		if c.Classify(ex.Features) == ex.Whistle {
			correct++
		}
	}

	return float64(correct) / float64(len(examples))
}

func at(features types.FeatureVector, i int) (float64, bool) {
	if i < 0 || i >= len(features) {
		return 0, false
	}

	return features[i], true
}
