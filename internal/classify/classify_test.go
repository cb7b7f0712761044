package classify_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/types"
)

// separable returns examples whose first feature is above 10 for whistles and below 1 otherwise.
// The remaining features are noise shared by both classes.
func separable(n, size int, seed uint64) []types.TrainingExample {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]types.TrainingExample, 0, n)

	for i := range n {
		whistle := i%2 == 0
		f := make(types.FeatureVector, size)

		if whistle {
			f[0] = 10 + 10*rng.Float64()
		} else {
			f[0] = rng.Float64()
		}

		for j := 1; j < size; j++ {
			f[j] = rng.NormFloat64() * 3
		}

		out = append(out, types.TrainingExample{Features: f, Whistle: whistle})
	}

	return out
}

func TestTree(t *testing.T) {
	t.Parallel()

	tree := &classify.Tree{Root: classify.Split(0, 1,
		classify.Leaf(false),
		classify.Split(1, 5, classify.Leaf(false), classify.Leaf(true)),
	)}

	tests := []struct {
		features types.FeatureVector
		want     bool
	}{
		{types.FeatureVector{0.5, 100}, false},
		{types.FeatureVector{1, 100}, false},
		{types.FeatureVector{2, 5}, false},
		{types.FeatureVector{2, 6}, true},
		{types.FeatureVector{2}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := tree.Classify(tt.features); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.features, got, tt.want)
		}
	}

	if (&classify.Tree{}).Classify(types.FeatureVector{1}) {
		t.Error("empty tree classified positive")
	}
}

func TestThresholdsAndRatios(t *testing.T) {
	t.Parallel()

	th := classify.Thresholds{{Feature: 0, Min: 35}, {Feature: 2, Min: 2}}
	if !th.Classify(types.FeatureVector{35, 0, 2}) {
		t.Error("thresholds are inclusive")
	}

	if th.Classify(types.FeatureVector{34.9, 0, 5}) {
		t.Error("below the first threshold")
	}

	if (classify.Thresholds{}).Classify(types.FeatureVector{1}) {
		t.Error("empty rule set must not be positive")
	}

	ratios := classify.Ratios{{Feature: 0, Reference: 1, Multiplier: 3}}
	if !ratios.Classify(types.FeatureVector{3.1, 1}) {
		t.Error("ratio above multiplier")
	}

	if ratios.Classify(types.FeatureVector{3, 1}) {
		t.Error("ratios are strict")
	}

	if ratios.Classify(types.FeatureVector{3}) {
		t.Error("missing reference feature")
	}

	all := classify.All{th, classify.Ratios{{Feature: 0, Reference: 1, Multiplier: 10}}}
	if !all.Classify(types.FeatureVector{40, 1, 2}) || all.Classify(types.FeatureVector{40, 5, 2}) {
		t.Error("conjunction")
	}
}

func TestScalerConstantFeature(t *testing.T) {
	t.Parallel()

	examples := []types.TrainingExample{
		{Features: types.FeatureVector{1, 7}},
		{Features: types.FeatureVector{3, 7}},
	}

	scaler, err := classify.FitScaler(examples)
	if err != nil {
		t.Fatal(err)
	}

	if scaler.Mean[0] != 2 || scaler.StdDev[0] != 1 {
		t.Fatalf("feature 0: mean %v std %v", scaler.Mean[0], scaler.StdDev[0])
	}

	if scaler.StdDev[1] != 1 {
		t.Fatalf("constant feature std %v, want 1", scaler.StdDev[1])
	}

	got := scaler.Apply(make([]float64, 2), types.FeatureVector{3, 7})
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("Apply = %v", got)
	}

	if _, err = classify.FitScaler(nil); !errors.Is(err, classify.ErrNoExamples) {
		t.Fatalf("got %v, want ErrNoExamples", err)
	}
}

func TestFitNetworkSeparable(t *testing.T) {
	t.Parallel()

	examples := separable(200, 4, 3)

	net, report, err := classify.FitNetwork(examples, classify.DefaultNetworkOptions())
	if err != nil {
		t.Fatal(err)
	}

	if report.Accuracy < 0.95 {
		t.Fatalf("train accuracy %v after %d epochs (mse %v)", report.Accuracy, report.Epochs, report.MSE)
	}

	if report.Epochs > classify.DefaultNetworkOptions().MaxEpochs {
		t.Fatalf("ran %d epochs", report.Epochs)
	}

	if net.Inputs() != 4 || net.Hidden() != 4 {
		t.Fatalf("shape %d-%d", net.Inputs(), net.Hidden())
	}

	// Unseen points well inside each class.
	if !net.Classify(types.FeatureVector{15, 0, 0, 0}) || net.Classify(types.FeatureVector{0.5, 0, 0, 0}) {
		t.Fatal("network does not generalize across the gap")
	}
}

func TestFitNetworkDeterministic(t *testing.T) {
	t.Parallel()

	examples := separable(60, 2, 9)
	opts := classify.DefaultNetworkOptions()
	opts.MaxEpochs = 50

	a, _, err := classify.FitNetwork(examples, opts)
	if err != nil {
		t.Fatal(err)
	}

	b, _, err := classify.FitNetwork(examples, opts)
	if err != nil {
		t.Fatal(err)
	}

	for _, ex := range examples {
		if a.Score(ex.Features) != b.Score(ex.Features) {
			t.Fatal("same seed produced different networks")
		}
	}
}

func TestFitNetworkEmpty(t *testing.T) {
	t.Parallel()

	if _, _, err := classify.FitNetwork(nil, classify.DefaultNetworkOptions()); !errors.Is(err, classify.ErrNoExamples) {
		t.Fatalf("got %v, want ErrNoExamples", err)
	}
}

func TestFitLinearSeparable(t *testing.T) {
	t.Parallel()

	_, report, err := classify.FitLinear(separable(200, 3, 5), classify.DefaultLinearOptions())
	if err != nil {
		t.Fatal(err)
	}

	if report.Accuracy < 0.95 {
		t.Fatalf("train accuracy %v", report.Accuracy)
	}
}

func TestModelPersistence(t *testing.T) {
	t.Parallel()

	examples := separable(80, 4, 21)

	net, _, err := classify.FitNetwork(examples, classify.DefaultNetworkOptions())
	if err != nil {
		t.Fatal(err)
	}

	lin, _, err := classify.FitLinear(examples, classify.DefaultLinearOptions())
	if err != nil {
		t.Fatal(err)
	}

	models := []classify.Classifier{
		net,
		lin,
		&classify.Tree{Root: classify.Split(0, 5, classify.Leaf(false), classify.Leaf(true))},
		classify.All{
			classify.Thresholds{{Feature: 0, Min: 5}},
			classify.Ratios{{Feature: 0, Reference: 1, Multiplier: 2}},
		},
	}

	for _, model := range models {
		var buf bytes.Buffer
		if err = classify.Save(&buf, model); err != nil {
			t.Fatalf("%s: %v", model.Kind(), err)
		}

		loaded, err := classify.Load(&buf)
		if err != nil {
			t.Fatalf("%s: %v", model.Kind(), err)
		}

		if loaded.Kind() != model.Kind() {
			t.Fatalf("kind %s, want %s", loaded.Kind(), model.Kind())
		}

		for _, ex := range examples {
			if loaded.Classify(ex.Features) != model.Classify(ex.Features) {
				t.Fatalf("%s: loaded model disagrees on %v", model.Kind(), ex.Features)
			}
		}
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  error
	}{
		{"not json", fault.ErrInvalidJSON},
		{`{"kind":"forest"}`, classify.ErrUnknownKind},
		{`{"kind":"tree"}`, classify.ErrInvalidModel},
		{`{"kind":"network","scaler":{"mean":[0],"stdDev":[1]},"hidden":[[1,2],[3]],"output":[1,1,1]}`, classify.ErrInvalidModel},
		{`{"kind":"network","scaler":{"mean":[0],"stdDev":[1]},"hidden":[[1,2]],"output":[1]}`, classify.ErrInvalidModel},
		{`{"kind":"linear","scaler":{"mean":[0,0],"stdDev":[1,0]},"weights":[1,1]}`, classify.ErrInvalidModel},
	}

	for _, tt := range tests {
		c, err := classify.Load(strings.NewReader(tt.input))
		if !errors.Is(err, tt.want) {
			t.Errorf("Load(%s) error = %v, want %v", tt.input, err, tt.want)
		}

		if c != nil {
			t.Errorf("Load(%s) returned a classifier alongside an error", tt.input)
		}
	}
}

func TestTableExport(t *testing.T) {
	t.Parallel()

	table, err := classify.NewTable("demo", []types.TrainingExample{
		{Features: types.FeatureVector{1.5, 2}, Whistle: true},
		{Features: types.FeatureVector{0, 0.25}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var csv, data, names, costs bytes.Buffer

	if err = table.WriteCSV(&csv); err != nil {
		t.Fatal(err)
	}

	if err = table.WriteData(&data); err != nil {
		t.Fatal(err)
	}

	if err = table.WriteNames(&names); err != nil {
		t.Fatal(err)
	}

	if err = classify.WriteCosts(&costs); err != nil {
		t.Fatal(err)
	}

	if got, want := csv.String(), "feature0,feature1,whistle\n1.5,2,YES\n0,0.25,NO\n"; got != want {
		t.Errorf("csv:\n%s\nwant:\n%s", got, want)
	}

	if got, want := data.String(), "1.5,2,YES\n0,0.25,NO\n"; got != want {
		t.Errorf("data:\n%s", got)
	}

	if got, want := names.String(), "whistle.\nfeature0: continuous.\nfeature1: continuous.\nwhistle: YES, NO.\n"; got != want {
		t.Errorf("names:\n%s", got)
	}

	if got, want := costs.String(), "YES, NO: 10\nNO, YES: 1\n"; got != want {
		t.Errorf("costs:\n%s", got)
	}

	if table.Positives() != 1 {
		t.Errorf("positives %d", table.Positives())
	}

	if _, err = classify.NewTable("ragged", []types.TrainingExample{
		{Features: types.FeatureVector{1}},
		{Features: types.FeatureVector{1, 2}},
	}); !errors.Is(err, classify.ErrFeatureCount) {
		t.Errorf("ragged table: %v", err)
	}
}
