package ffprobe_test

import (
	"errors"
	"testing"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/integration/ffprobe"
	"github.com/farcloser/whistlelab/internal/types"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video"},
    {"index": 1, "codec_name": "pcm_s16le", "codec_type": "audio", "sample_rate": "44100", "channels": 4},
    {"index": 2, "codec_name": "flac", "codec_type": "audio", "sample_rate": "bogus", "channels": 1}
  ],
  "format": {"filename": "nao.wav", "format_name": "wav", "duration": "12.5", "probe_score": 99}
}`

func TestParse(t *testing.T) {
	t.Parallel()

	result, err := ffprobe.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := result.Audio(0)
	if err != nil {
		t.Fatal(err)
	}

	format, err := stream.PCMFormat(types.Depth32)
	if err != nil {
		t.Fatal(err)
	}

	if format != (types.PCMFormat{SampleRate: 44100, BitDepth: types.Depth32, Channels: 4}) {
		t.Errorf("format = %+v", format)
	}

	second, err := result.Audio(1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = second.PCMFormat(types.Depth32); !errors.Is(err, ffprobe.ErrInvalidStream) {
		t.Errorf("bogus sample rate: %v", err)
	}

	if _, err = result.Audio(2); !errors.Is(err, ffprobe.ErrNoAudioStream) {
		t.Errorf("Audio(2) = %v", err)
	}

	if _, err = ffprobe.Parse([]byte("{")); !errors.Is(err, fault.ErrInvalidJSON) {
		t.Errorf("Parse(invalid) = %v", err)
	}
}
