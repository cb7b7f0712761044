//nolint:tagliatelle
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/integration/binary"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	ErrNoAudioStream = errors.New("audio stream not found")
	ErrInvalidStream = errors.New("invalid audio stream")
)

// Result contains the marshalled output of ffprobe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream holds the stream properties needed to decode audio.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`               // flac
	CodecType     string `json:"codec_type"`               // audio
	SampleRate    string `json:"sample_rate,omitempty"`    // 44100
	Channels      int    `json:"channels,omitempty"`       // 2
	ChannelLayout string `json:"channel_layout,omitempty"` // stereo
	Duration      string `json:"duration,omitempty"`       // 310.666667
	DurationTS    int64  `json:"duration_ts,omitempty"`    // in time base units, 1/<sample_rate> for audio
}

type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`        // "wav", "mov,mp4,m4a,3gp,3g2,mj2"
	Duration   string `json:"duration,omitempty"` // seconds as a float string
	ProbeScore int    `json:"probe_score"`        // 0-100
}

// Audio returns the streamIndex-th audio stream (0-based, counting audio streams only).
func (r *Result) Audio(streamIndex int) (*Stream, error) {
	audioCount := 0

	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			if audioCount == streamIndex {
				return &r.Streams[i], nil
			}

			audioCount++
		}
	}

	return nil, fmt.Errorf("%w: index %d (file has %d audio streams)", ErrNoAudioStream, streamIndex, audioCount)
}

// PCMFormat returns the decoding format of the stream at the given bit depth.
func (s *Stream) PCMFormat(depth types.BitDepth) (types.PCMFormat, error) {
	sampleRate, err := strconv.Atoi(s.SampleRate)
	if err != nil || sampleRate <= 0 {
		return types.PCMFormat{}, fmt.Errorf("%w: sample rate %q", ErrInvalidStream, s.SampleRate)
	}

	if s.Channels <= 0 {
		return types.PCMFormat{}, fmt.Errorf("%w: %d channels", ErrInvalidStream, s.Channels)
	}

	return types.PCMFormat{
		SampleRate: sampleRate,
		BitDepth:   depth,
		Channels:   uint(s.Channels), //nolint:gosec // validated positive value
	}, nil
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return &result, nil
}

// Probe runs ffprobe on the given file path and returns parsed metadata.
// It requires ffprobe to be available in the system PATH.
func Probe(ctx context.Context, filePath string) (*Result, error) {
	slog.Debug("ffprobe.Probe", "file path", filePath)

	ffprobePath, err := binary.Require(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // filePath is intentionally user-provided input for probing media files
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	return Parse(output)
}
