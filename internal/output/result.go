// Package output provides shared result serialization for whistlelab JSON output.
package output

import (
	"time"

	"github.com/farcloser/whistlelab/internal/detector"
	"github.com/farcloser/whistlelab/internal/evaluation"
	"github.com/farcloser/whistlelab/internal/store"
)

// ResultToMap converts an evaluation result into the canonical map structure used for JSON serialization.
func ResultToMap(result *evaluation.Result, channels bool) map[string]any {
	meta := map[string]any{
		"summary": map[string]any{
			"positives":       result.Positives,
			"true_positives":  result.TruePositives,
			"false_positives": result.FalsePositives,
			"recall":          result.Recall(),
			"precision":       result.Precision(),
		},
		"delay": map[string]any{
			"average_sec": result.AverageDelay,
			"min_sec":     result.MinDelay,
			"max_sec":     result.MaxDelay,
		},
	}

	var skipped int

	for i := range result.Files {
		if result.Files[i].Err != nil {
			skipped++
		}
	}

	if skipped > 0 {
		meta["skipped_channels"] = skipped
	}

	if channels {
		files := make([]any, 0, len(result.Files))
		for i := range result.Files {
			files = append(files, FileToMap(&result.Files[i]))
		}

		meta["channels"] = files
	}

	return meta
}

// FileToMap converts the score of one channel to a map.
func FileToMap(file *evaluation.FileResult) map[string]any {
	meta := map[string]any{
		"channel":          file.Channel,
		"labels":           file.Labels,
		"true_positives":   file.TruePositives,
		"false_positives":  file.FalsePositives,
		"detections":       len(file.Detections),
		"runtime_ms":       durationMs(file.Runtime),
		"real_time_factor": file.RealTimeFactor,
	}

	if len(file.Delays) > 0 {
		meta["delays_sec"] = file.Delays
	}

	if file.Err != nil {
		meta["error"] = file.Err.Error()
	}

	return meta
}

// ReportToMap converts a training report to a map.
func ReportToMap(report *detector.TrainingReport) map[string]any {
	meta := map[string]any{
		"kind":      string(report.Kind),
		"examples":  report.Examples,
		"positives": report.Positives,
		"swapped":   report.Swapped,
		"accuracy":  report.Fit.Accuracy,
	}

	if report.Swapped {
		meta["epochs"] = report.Fit.Epochs
		meta["mse"] = report.Fit.MSE
	}

	return meta
}

// RunToMap converts a stored run, and optionally its channels, to a map.
func RunToMap(run *store.Run, channels []store.Channel) map[string]any {
	meta := map[string]any{
		"id":              run.ID,
		"detector":        run.Detector,
		"corpus":          run.Corpus,
		"created_at":      run.CreatedAt.UTC().Format(time.RFC3339),
		"positives":       run.Positives,
		"true_positives":  run.TruePositives,
		"false_positives": run.FalsePositives,
		"delay": map[string]any{
			"average_sec": run.AverageDelay,
			"min_sec":     run.MinDelay,
			"max_sec":     run.MaxDelay,
		},
	}

	if channels == nil {
		return meta
	}

	entries := make([]any, 0, len(channels))
	for _, ch := range channels {
		entry := map[string]any{
			"channel":          ch.Channel,
			"labels":           ch.Labels,
			"true_positives":   ch.TruePositives,
			"false_positives":  ch.FalsePositives,
			"detections":       ch.Detections,
			"real_time_factor": ch.RealTimeFactor,
		}
		if ch.Skipped != "" {
			entry["skipped"] = ch.Skipped
		}

		entries = append(entries, entry)
	}

	meta["channels"] = entries

	return meta
}

// DetectionsToMap lists detection positions, in samples and seconds.
func DetectionsToMap(positions []int64, sampleRate int) map[string]any {
	events := make([]any, 0, len(positions))
	for _, pos := range positions {
		events = append(events, map[string]any{
			"sample":   pos,
			"time_sec": float64(pos) / float64(sampleRate),
		})
	}

	return map[string]any{
		"sample_rate": sampleRate,
		"count":       len(positions),
		"detections":  events,
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
