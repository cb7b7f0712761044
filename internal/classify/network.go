package classify

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/farcloser/whistlelab/internal/types"
)

// Network is a standardized one hidden layer perceptron: tanh hidden units and a logistic output.
// Bias terms are stored as the last column of Hidden and the last element of Output.
type Network struct {
	scaler Scaler
	hidden *mat.Dense
	output *mat.VecDense
}

// NewNetwork checks the shapes of the parameters against each other.
func NewNetwork(scaler Scaler, hidden *mat.Dense, output *mat.VecDense) (*Network, error) {
	if hidden == nil || output == nil {
		return nil, fmt.Errorf("%w: missing weights", ErrInvalidModel)
	}

	units, cols := hidden.Dims()
	if units == 0 || cols < 2 {
		return nil, fmt.Errorf("%w: hidden layer %dx%d", ErrInvalidModel, units, cols)
	}

	if output.Len() != units+1 {
		return nil, fmt.Errorf("%w: output layer has %d weights for %d hidden units", ErrInvalidModel, output.Len(), units)
	}

	if !scaler.valid(cols - 1) {
		return nil, fmt.Errorf("%w: scaler does not match %d inputs", ErrInvalidModel, cols-1)
	}

	return &Network{scaler: scaler, hidden: hidden, output: output}, nil
}

func (n *Network) Kind() Kind {
	return KindNetwork
}

// Inputs returns the expected feature count.
func (n *Network) Inputs() int {
	_, cols := n.hidden.Dims()

	return cols - 1
}

// Hidden returns the number of hidden units.
func (n *Network) Hidden() int {
	units, _ := n.hidden.Dims()

	return units
}

// Score returns the network output in (0, 1).
func (n *Network) Score(features types.FeatureVector) float64 {
	inputs := n.Inputs()
	if len(features) != inputs {
		return 0
	}

	x := mat.NewVecDense(inputs+1, nil)
	n.scaler.Apply(x.RawVector().Data, features)
	x.SetVec(inputs, 1)

	var sums mat.VecDense
	sums.MulVec(n.hidden, x)

	units := n.Hidden()
	act := mat.NewVecDense(units+1, nil)

	for j := range units {
		act.SetVec(j, math.Tanh(sums.AtVec(j)))
	}

	act.SetVec(units, 1)

	return sigmoid(mat.Dot(n.output, act))
}

func (n *Network) Classify(features types.FeatureVector) bool {
	return n.Score(features) > 0.5
}

type NetworkOptions struct {
	Hidden       int     // hidden units (default 4)
	MaxEpochs    int     // training budget (default 10000)
	DesiredError float64 // stop once the mean squared error reaches this (default 0.001)
	InitRange    float64 // initial weights are uniform in [-InitRange, InitRange] (default 1)
	Seed         uint64
	ReportEvery  int // epochs between progress logs (default 100)
}

func DefaultNetworkOptions() NetworkOptions {
	return NetworkOptions{
		Hidden:       4,
		MaxEpochs:    10000,
		DesiredError: 0.001,
		InitRange:    1,
		Seed:         1,
		ReportEvery:  100,
	}
}

// FitReport summarizes a training run.
type FitReport struct {
	Epochs   int
	MSE      float64
	Accuracy float64
}

// rprop step bounds and factors (iRPROP-).
const (
	rpropInitial  = 0.1
	rpropMin      = 1e-6
	rpropMax      = 50.0
	rpropIncrease = 1.2
	rpropDecrease = 0.5
)

// FitNetwork standardizes the examples and trains a network with batch iRPROP- on the squared error.
func FitNetwork(examples []types.TrainingExample, opts NetworkOptions) (*Network, FitReport, error) {
	def := DefaultNetworkOptions()
	if opts.Hidden <= 0 {
		opts.Hidden = def.Hidden
	}

	if opts.MaxEpochs <= 0 {
		opts.MaxEpochs = def.MaxEpochs
	}

	if opts.DesiredError <= 0 {
		opts.DesiredError = def.DesiredError
	}

	if opts.InitRange <= 0 {
		opts.InitRange = def.InitRange
	}

	if opts.ReportEvery <= 0 {
		opts.ReportEvery = def.ReportEvery
	}

	scaler, err := FitScaler(examples)
	if err != nil {
		return nil, FitReport{}, err
	}

	inputs := len(scaler.Mean)
	cols := inputs + 1
	units := opts.Hidden

	// Standardized inputs with the bias term appended.
	xs := make([][]float64, len(examples))
	for i, ex := range examples {
		xs[i] = make([]float64, cols)
		scaler.Apply(xs[i], ex.Features)
		xs[i][inputs] = 1
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	uniform := func() float64 { return (2*rng.Float64() - 1) * opts.InitRange }

	hidden := mat.NewDense(units, cols, nil)
	output := mat.NewVecDense(units+1, nil)
	hw := hidden.RawMatrix().Data
	ow := output.RawVector().Data

	for i := range hw {
		hw[i] = uniform()
	}

	for i := range ow {
		ow[i] = uniform()
	}

	params := [][]float64{hw, ow}
	grads := [][]float64{make([]float64, len(hw)), make([]float64, len(ow))}
	steps := [][]float64{filled(len(hw), rpropInitial), filled(len(ow), rpropInitial)}
	previous := [][]float64{make([]float64, len(hw)), make([]float64, len(ow))}

	act := make([]float64, units+1)
	act[units] = 1

	var (
		epoch int
		mse   float64
	)

	for epoch = 1; epoch <= opts.MaxEpochs; epoch++ {
		zero(grads[0])
		zero(grads[1])

		mse = 0

		for i, x := range xs {
			for j := range units {
				act[j] = math.Tanh(floats.Dot(hw[j*cols:(j+1)*cols], x))
			}

			out := sigmoid(floats.Dot(ow, act))

			target := 0.0
			if examples[i].Whistle {
				target = 1
			}

			diff := out - target
			mse += diff * diff

			delta := diff * out * (1 - out)
			floats.AddScaled(grads[1], delta, act)

			for j := range units {
				floats.AddScaled(grads[0][j*cols:(j+1)*cols], delta*ow[j]*(1-act[j]*act[j]), x)
			}
		}

		mse /= float64(len(xs))

		if epoch%opts.ReportEvery == 0 {
			slog.Debug("classify.FitNetwork", "epoch", epoch, "mse", mse)
		}

		if mse <= opts.DesiredError {
			break
		}

		for p := range params {
			rprop(params[p], grads[p], steps[p], previous[p])
		}
	}

	network := &Network{scaler: scaler, hidden: hidden, output: output}

	return network, FitReport{
		Epochs:   min(epoch, opts.MaxEpochs),
		MSE:      mse,
		Accuracy: Accuracy(network, examples),
	}, nil
}

func rprop(weights, grads, steps, previous []float64) {
	for i, g := range grads {
		switch sign := g * previous[i]; {
		case sign > 0:
			steps[i] = math.Min(steps[i]*rpropIncrease, rpropMax)
			weights[i] -= math.Copysign(steps[i], g)
			previous[i] = g
		case sign < 0:
			steps[i] = math.Max(steps[i]*rpropDecrease, rpropMin)
			previous[i] = 0
		default:
			if g != 0 {
				weights[i] -= math.Copysign(steps[i], g)
			}

			previous[i] = g
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
