package capture_test

import (
	"testing"

	"github.com/farcloser/whistlelab/internal/capture"
)

func TestMicrophone(t *testing.T) {
	mic, err := capture.Open(capture.Options{SampleRate: 16000, FramesPerBuffer: 256})
	if err != nil {
		t.Skipf("no audio input available: %v", err)
	}

	buf := make([]float64, 1000)
	if n := mic.Read(buf); n != len(buf) {
		t.Errorf("Read = %d, want %d (%v)", n, len(buf), mic.Err())
	}

	if mic.Samples() != int64(len(buf)) {
		t.Errorf("Samples = %d, want %d", mic.Samples(), len(buf))
	}

	if mic.SampleRate() != 16000 {
		t.Errorf("SampleRate = %d", mic.SampleRate())
	}

	mic.Stop()

	// What is already buffered may still be returned, nothing more.
	if n := mic.Read(make([]float64, 1024)); n >= 1024 {
		t.Errorf("Read after Stop = %d", n)
	}

	if err = mic.Close(); err != nil {
		t.Error(err)
	}
}
