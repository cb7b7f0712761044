package classify

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/whistlelab/internal/types"
)

// Linear is a standardized logistic decision boundary.
type Linear struct {
	scaler  Scaler
	weights []float64
	bias    float64
}

// NewLinear checks the weights against the scaler.
func NewLinear(scaler Scaler, weights []float64, bias float64) (*Linear, error) {
	if len(weights) == 0 || !scaler.valid(len(weights)) {
		return nil, fmt.Errorf("%w: %d weights", ErrInvalidModel, len(weights))
	}

	return &Linear{scaler: scaler, weights: weights, bias: bias}, nil
}

func (l *Linear) Kind() Kind {
	return KindLinear
}

func (l *Linear) Inputs() int {
	return len(l.weights)
}

// Score returns the logistic output in (0, 1).
func (l *Linear) Score(features types.FeatureVector) float64 {
	if len(features) != len(l.weights) {
		return 0
	}

	x := l.scaler.Apply(make([]float64, len(features)), features)

	return sigmoid(floats.Dot(l.weights, x) + l.bias)
}

func (l *Linear) Classify(features types.FeatureVector) bool {
	return l.Score(features) > 0.5
}

type LinearOptions struct {
	Epochs       int     // default 2000
	LearningRate float64 // default 0.5
}

func DefaultLinearOptions() LinearOptions {
	return LinearOptions{Epochs: 2000, LearningRate: 0.5}
}

// FitLinear runs batch gradient descent on the logistic loss over standardized features.
func FitLinear(examples []types.TrainingExample, opts LinearOptions) (*Linear, FitReport, error) {
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultLinearOptions().Epochs
	}

	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultLinearOptions().LearningRate
	}

	scaler, err := FitScaler(examples)
	if err != nil {
		return nil, FitReport{}, err
	}

	size := len(scaler.Mean)
	xs := make([][]float64, len(examples))

	for i, ex := range examples {
		xs[i] = scaler.Apply(make([]float64, size), ex.Features)
	}

	model := &Linear{scaler: scaler, weights: make([]float64, size)}
	grad := make([]float64, size)
	rate := opts.LearningRate / float64(len(xs))

	var mse float64

	for range opts.Epochs {
		zero(grad)

		var biasGrad float64

		mse = 0

		for i, x := range xs {
			out := sigmoid(floats.Dot(model.weights, x) + model.bias)

			target := 0.0
			if examples[i].Whistle {
				target = 1
			}

			diff := out - target
			mse += diff * diff
			biasGrad += diff

			floats.AddScaled(grad, diff, x)
		}

		mse /= float64(len(xs))

		floats.AddScaled(model.weights, -rate, grad)
		model.bias -= rate * biasGrad
	}

	return model, FitReport{Epochs: opts.Epochs, MSE: mse, Accuracy: Accuracy(model, examples)}, nil
}
