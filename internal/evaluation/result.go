package evaluation

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FileResult scores one channel.
type FileResult struct {
	Channel        string
	Labels         int
	TruePositives  int
	FalsePositives int
	Detections     []int64
	// Delays holds, for every label that was hit, the earliest delay in seconds.
	Delays []float64
	// Runtime is the wall time spent inside the detector.
	Runtime time.Duration
	// RealTimeFactor is the runtime over the audio duration.
	RealTimeFactor float64
	// Err is set when the channel was skipped.
	Err error
}

// Result aggregates a whole corpus. Delays are in seconds.
type Result struct {
	Detector       string
	Positives      int
	TruePositives  int
	FalsePositives int
	AverageDelay   float64
	MinDelay       float64
	MaxDelay       float64
	Files          []FileResult
}

// Recall is the fraction of labeled whistles that were hit.
func (r *Result) Recall() float64 {
	if r.Positives == 0 {
		return 0
	}

	return float64(r.TruePositives) / float64(r.Positives)
}

// Precision is the fraction of counted detections that were true.
func (r *Result) Precision() float64 {
	total := r.TruePositives + r.FalsePositives
	if total == 0 {
		return 0
	}

	return float64(r.TruePositives) / float64(total)
}

// Finalize recomputes the totals from Files.
func (r *Result) Finalize() {
	r.Positives, r.TruePositives, r.FalsePositives = 0, 0, 0
	r.AverageDelay, r.MinDelay, r.MaxDelay = 0, 0, 0

	var delays []float64

	for i := range r.Files {
		f := &r.Files[i]
		if f.Err != nil {
			continue
		}

		r.Positives += f.Labels
		r.TruePositives += f.TruePositives
		r.FalsePositives += f.FalsePositives
		delays = append(delays, f.Delays...)
	}

	if len(delays) == 0 {
		return
	}

	r.AverageDelay = stat.Mean(delays, nil)
	r.MinDelay = floats.Min(delays)
	r.MaxDelay = floats.Max(delays)
}
