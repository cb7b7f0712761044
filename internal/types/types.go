// Package types holds the data model shared by the detection pipeline, the evaluation harness and the adapters.
package types

type BitDepth uint

const (
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// PCMFormat describes interleaved signed little-endian PCM.
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
}

// Band is a half-open index interval [Begin, End) into a spectrum.
type Band struct {
	Begin int
	End   int
}

// Len returns the number of bins covered by the band.
func (b Band) Len() int {
	if b.End < b.Begin {
		return 0
	}

	return b.End - b.Begin
}

// Clamp restricts the band to [lo, hi). An inverted result collapses to an empty band at its start.
func (b Band) Clamp(lo, hi int) Band {
	b.Begin = min(max(b.Begin, lo), hi)
	b.End = min(max(b.End, lo), hi)

	if b.End < b.Begin {
		b.End = b.Begin
	}

	return b
}

// FeatureVector is the per-block input to a classifier. Its size depends on the detector.
type FeatureVector []float64

// Clone returns an independent copy.
func (f FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(f))
	copy(out, f)

	return out
}

// Verdict is the per-block classification result handed to the temporal integrator.
type Verdict struct {
	Whistle bool
	// Volume is strategy specific (peak amplitude, dB level) and only consulted by integrators gating on it.
	Volume float64
}

// WhistleLabel is a ground truth interval [Start, End) in sample indices.
type WhistleLabel struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether pos lies strictly inside the label.
func (l WhistleLabel) Contains(pos int64) bool {
	return l.Start < pos && pos < l.End
}

// Channel is one labeled, decoded audio channel.
type Channel struct {
	Name              string
	Index             int
	SampleRate        int
	Samples           []float64
	Labels            []WhistleLabel
	CompletelyLabeled bool
}

// Corpus is an ordered set of labeled channels.
type Corpus struct {
	Name     string
	Channels []*Channel
}

// TrainingExample pairs a feature vector with its ground truth.
type TrainingExample struct {
	Features FeatureVector
	Whistle  bool
}

// SampleSource supplies single channel samples. Read returns fewer than len(buf) samples only at end of stream.
type SampleSource interface {
	Read(buf []float64) int
	SampleRate() int
}

// Reporter receives confirmed whistle events, as a signed sample offset relative to the current read cursor.
type Reporter interface {
	Report(offset int64)
}

// Labeler answers ground truth queries relative to the current read cursor. Only available while training.
type Labeler interface {
	InsideWhistle(offset int64) bool
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(offset int64)

func (f ReporterFunc) Report(offset int64) {
	f(offset)
}
