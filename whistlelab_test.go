package whistlelab_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/config"
	"github.com/farcloser/whistlelab/internal/detector"
	"github.com/farcloser/whistlelab/internal/types"
)

const sampleRate = 44100

// sineChannel is three seconds of silence with a 3 kHz tone over the middle second.
func sineChannel(name string) *types.Channel {
	samples := make([]float64, 3*sampleRate)
	for i := sampleRate; i < 2*sampleRate; i++ {
		samples[i] = 0.5 * math.Sin(2*math.Pi*3000*float64(i)/sampleRate)
	}

	return &types.Channel{
		Name:              name,
		SampleRate:        sampleRate,
		Samples:           samples,
		Labels:            []types.WhistleLabel{{Start: sampleRate, End: 2 * sampleRate}},
		CompletelyLabeled: true,
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	names := whistlelab.Names()
	want := []whistlelab.Strategy{
		whistlelab.AdaptiveHarmonic,
		whistlelab.BackgroundGrowth,
		whistlelab.OvertoneLadder,
		whistlelab.PeakDuration,
		whistlelab.PeakRatio,
	}

	if !slices.Equal(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}

	for _, name := range names {
		if whistlelab.Describe(name) == "" {
			t.Errorf("%s has no description", name)
		}

		det, err := whistlelab.New(name, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}

		if det.Name() != name.String() {
			t.Errorf("New(%s) built %s", name, det.Name())
		}

		if parsed, err := whistlelab.ParseStrategy(name.String()); err != nil || parsed != name {
			t.Errorf("ParseStrategy(%s) = %v, %v", name, parsed, err)
		}
	}

	if _, err := whistlelab.ParseStrategy("hulks"); !errors.Is(err, whistlelab.ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(hulks) = %v", err)
	}

	if _, err := whistlelab.New("hulks", nil); !errors.Is(err, whistlelab.ErrUnknownStrategy) {
		t.Errorf("New(hulks) = %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	corpus := &types.Corpus{Channels: []*types.Channel{sineChannel("a"), sineChannel("b")}}

	res, err := whistlelab.Evaluate(context.Background(), whistlelab.AdaptiveHarmonic, nil, corpus)
	if err != nil {
		t.Fatal(err)
	}

	if res.Positives != 2 || res.TruePositives != 2 || res.FalsePositives != 0 {
		t.Errorf("positives=%d tp=%d fp=%d", res.Positives, res.TruePositives, res.FalsePositives)
	}

	if res.AverageDelay <= 0 || res.AverageDelay > 0.5 {
		t.Errorf("average delay %v", res.AverageDelay)
	}
}

func TestEvaluateAbortsOnConfiguration(t *testing.T) {
	t.Parallel()

	ch := sineChannel("low")
	ch.SampleRate = 16000

	_, err := whistlelab.Evaluate(context.Background(), whistlelab.OvertoneLadder, nil,
		&types.Corpus{Channels: []*types.Channel{ch}})
	if !errors.Is(err, detector.ErrConfiguration) {
		t.Errorf("Evaluate at 16 kHz = %v, want a configuration error", err)
	}
}

func TestTrainAndReload(t *testing.T) {
	t.Parallel()

	ch := sineChannel("a")
	// A faint tone in the search band keeps the blocks outside the whistle from being degenerate.
	for i := range ch.Samples {
		ch.Samples[i] += 0.01 * math.Sin(2*math.Pi*4500*float64(i)/sampleRate)
	}

	opts := detector.DefaultTrainOptions()
	opts.Kind = classify.KindLinear

	det, report, err := whistlelab.Train(context.Background(), whistlelab.AdaptiveHarmonic, nil,
		&types.Corpus{Channels: []*types.Channel{ch}}, opts)
	if err != nil {
		t.Fatal(err)
	}

	if !report.Swapped || report.Positives == 0 || report.Positives == report.Examples {
		t.Fatalf("report = %+v", report)
	}

	dir := t.TempDir()
	model := filepath.Join(dir, "ah.json")

	if err = classify.SaveFile(model, det.Classifier()); err != nil {
		t.Fatal(err)
	}

	profile := config.Default()
	profile.Models[whistlelab.AdaptiveHarmonic.String()] = model

	reloaded, err := whistlelab.New(whistlelab.AdaptiveHarmonic, profile)
	if err != nil {
		t.Fatal(err)
	}

	if reloaded.Classifier().Kind() != classify.KindLinear {
		t.Errorf("reloaded kind %s", reloaded.Classifier().Kind())
	}

	// A model with the wrong feature count is refused.
	profile.Models[whistlelab.PeakRatio.String()] = model
	if _, err = whistlelab.New(whistlelab.PeakRatio, profile); !errors.Is(err, classify.ErrFeatureCount) {
		t.Errorf("mismatched model: %v", err)
	}

	if err = os.WriteFile(model, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err = whistlelab.New(whistlelab.AdaptiveHarmonic, profile); err == nil {
		t.Error("corrupt model was accepted")
	}
}
