// Package evaluation runs detectors over labeled corpora and scores their reports against the ground truth.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farcloser/whistlelab/internal/types"
)

var ErrNoChannels = errors.New("corpus has no channels")

// Detector is the part of a detector the harness drives.
type Detector interface {
	Name() string
	Run(src types.SampleSource, report types.Reporter) error
}

// Collector records training examples instead of reporting.
type Collector interface {
	Collect(src types.SampleSource, labels types.Labeler) ([]types.TrainingExample, error)
}

// Factory builds an independent detector. Run calls it once per worker.
type Factory func() (Detector, error)

type Options struct {
	// FalsePositiveWindow is the minimum spacing between two counted false positives (default 1s).
	FalsePositiveWindow time.Duration
	// Workers bounds parallel channel evaluation in Run (default GOMAXPROCS).
	Workers int
	// Abort decides whether a channel error stops the evaluation. Nil aborts on every error.
	Abort func(error) bool
}

func DefaultOptions() Options {
	return Options{
		FalsePositiveWindow: time.Second,
		Workers:             runtime.GOMAXPROCS(0),
	}
}

func (o *Options) defaults() {
	if o.FalsePositiveWindow <= 0 {
		o.FalsePositiveWindow = time.Second
	}

	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

func (o *Options) abort(err error) bool {
	return o.Abort == nil || o.Abort(err)
}

// Evaluate runs det over every channel of corpus, in order.
func Evaluate(det Detector, corpus *types.Corpus, opts Options) (*Result, error) {
	if len(corpus.Channels) == 0 {
		return nil, ErrNoChannels
	}

	opts.defaults()

	result := &Result{Detector: det.Name(), Files: make([]FileResult, len(corpus.Channels))}

	for i, channel := range corpus.Channels {
		file, err := evaluateChannel(det, channel, opts)
		if err != nil {
			return nil, err
		}

		result.Files[i] = file
	}

	result.Finalize()

	return result, nil
}

// Run evaluates channels in parallel. Each worker owns a detector built by factory; results keep corpus order.
func Run(ctx context.Context, factory Factory, corpus *types.Corpus, opts Options) (*Result, error) {
	if len(corpus.Channels) == 0 {
		return nil, ErrNoChannels
	}

	opts.defaults()

	workers := min(opts.Workers, len(corpus.Channels))
	pool := make(chan Detector, workers)

	var name string

	for range workers {
		det, err := factory()
		if err != nil {
			return nil, err
		}

		name = det.Name()
		pool <- det
	}

	result := &Result{Detector: name, Files: make([]FileResult, len(corpus.Channels))}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, channel := range corpus.Channels {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			det := <-pool
			defer func() { pool <- det }()

			file, err := evaluateChannel(det, channel, opts)
			if err != nil {
				return err
			}

			result.Files[i] = file

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result.Finalize()

	return result, nil
}

// CollectExamples gathers labeled feature vectors from every channel.
func CollectExamples(ctx context.Context, collector Collector, corpus *types.Corpus) ([]types.TrainingExample, error) {
	var examples []types.TrainingExample

	for _, channel := range corpus.Channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Labels are queried relative to the cursor the collector reads from.
		handle := NewHandle(channel)

		got, err := collector.Collect(handle, handle)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", channel.Name, err)
		}

		slog.Debug("evaluation.CollectExamples", "channel", channel.Name, "examples", len(got))

		examples = append(examples, got...)
	}

	return examples, nil
}

func evaluateChannel(det Detector, channel *types.Channel, opts Options) (FileResult, error) {
	handle := NewHandle(channel)

	start := time.Now()
	err := det.Run(handle, handle)
	elapsed := time.Since(start)

	if err != nil {
		if opts.abort(err) {
			return FileResult{}, fmt.Errorf("%s: %w", channel.Name, err)
		}

		slog.Warn("skipping channel", "detector", det.Name(), "channel", channel.Name, "error", err)

		return FileResult{Channel: channel.Name, Err: err}, nil
	}

	window := int64(math.Round(opts.FalsePositiveWindow.Seconds() * float64(channel.SampleRate)))

	file := Score(channel, handle, window)
	file.Runtime = elapsed

	if channel.SampleRate > 0 && len(channel.Samples) > 0 {
		duration := float64(len(channel.Samples)) / float64(channel.SampleRate)
		file.RealTimeFactor = elapsed.Seconds() / duration
	}

	return file, nil
}

// Score matches the detections recorded by handle against the channel labels. A detection hits the first label
// strictly containing it; a miss on a completely labeled channel is a false positive unless another one was counted
// less than window samples before.
func Score(channel *types.Channel, handle *Handle, window int64) FileResult {
	file := FileResult{
		Channel:    channel.Name,
		Labels:     len(channel.Labels),
		Detections: append([]int64(nil), handle.detections...),
	}

	hits := make([]bool, len(channel.Labels))
	// -1 until a valid delay is seen.
	delays := make([]int64, len(channel.Labels))
	for i := range delays {
		delays[i] = -1
	}

	var lastFP int64

	for j, pos := range handle.detections {
		hit := false

		for i, label := range channel.Labels {
			if !label.Contains(pos) {
				continue
			}

			// A detection made before reading any of the whistle carries no meaningful delay.
			if delay := handle.reportedAt[j] - label.Start; delay >= 0 && (delays[i] < 0 || delay < delays[i]) {
				delays[i] = delay
			}

			hits[i] = true
			hit = true

			break
		}

		if hit || !channel.CompletelyLabeled {
			continue
		}

		if lastFP == 0 || pos > lastFP+window {
			file.FalsePositives++
			lastFP = max(1, pos)

			slog.Debug("evaluation.Score", "channel", channel.Name, "false positive", pos)
		}
	}

	for i, hit := range hits {
		if !hit {
			slog.Debug("evaluation.Score", "channel", channel.Name, "missed", channel.Labels[i].Start)

			continue
		}

		file.TruePositives++

		if delays[i] >= 0 {
			file.Delays = append(file.Delays, float64(delays[i])/float64(channel.SampleRate))
		}
	}

	return file
}
