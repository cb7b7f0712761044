// Package capture reads live audio from the default input device.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

var ErrDevice = errors.New("audio input failure")

type Options struct {
	SampleRate int // default 44100
	// FramesPerBuffer is the device read size (default 1024).
	FramesPerBuffer int
}

func DefaultOptions() Options {
	return Options{SampleRate: 44100, FramesPerBuffer: 1024}
}

// Microphone is a mono sample source on the default input device. Read blocks on the device; Stop makes the next
// Read return short so a detector run ends.
type Microphone struct {
	stream     *portaudio.Stream
	buffer     []float32
	pending    []float32
	sampleRate int
	samples    int64
	stopped    atomic.Bool
	err        error
}

// Open initializes the audio system and starts the default input stream.
func Open(opts Options) (*Microphone, error) {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}

	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = def.FramesPerBuffer
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	mic := &Microphone{buffer: make([]float32, opts.FramesPerBuffer), sampleRate: opts.SampleRate}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(opts.SampleRate), len(mic.buffer), mic.buffer)
	if err != nil {
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	if err = stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	mic.stream = stream

	slog.Debug("capture.Open", "sample rate", opts.SampleRate, "frames per buffer", opts.FramesPerBuffer)

	return mic, nil
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

func (m *Microphone) Read(buf []float64) int {
	n := 0

	for n < len(buf) {
		if len(m.pending) == 0 {
			if m.stopped.Load() || m.err != nil {
				m.samples += int64(n)

				return n
			}

			if err := m.stream.Read(); err != nil {
				m.err = fmt.Errorf("%w: %w", ErrDevice, err)
				m.samples += int64(n)

				return n
			}

			m.pending = m.buffer
		}

		copied := min(len(buf)-n, len(m.pending))
		for i, v := range m.pending[:copied] {
			buf[n+i] = float64(v)
		}

		m.pending = m.pending[copied:]
		n += copied
	}

	m.samples += int64(n)

	return n
}

// Samples returns how many samples were delivered so far.
func (m *Microphone) Samples() int64 {
	return m.samples
}

// Stop ends the stream at the next device read. Safe to call from another goroutine.
func (m *Microphone) Stop() {
	m.stopped.Store(true)
}

// Err returns the device error that ended the stream, if any.
func (m *Microphone) Err() error {
	return m.err
}

// Close stops the stream and releases the audio system.
func (m *Microphone) Close() error {
	m.Stop()

	err := errors.Join(m.stream.Stop(), m.stream.Close(), portaudio.Terminate())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}

	return nil
}
