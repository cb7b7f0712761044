// Package pcm converts interleaved signed little-endian PCM into normalized per-channel samples.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/types"
)

const (
	MaxValue16 = 32768.0      // 2^15
	MaxValue24 = 8388608.0    // 2^23
	MaxValue32 = 2147483648.0 // 2^31
)

var ErrFormat = errors.New("unsupported PCM format")

// frames read per chunk
const chunkFrames = 4096

func validate(format types.PCMFormat) error {
	switch format.BitDepth {
	case types.Depth16, types.Depth24, types.Depth32:
	default:
		return fmt.Errorf("%w: %d bit", ErrFormat, format.BitDepth)
	}

	if format.Channels == 0 || format.SampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrFormat, format.Channels, format.SampleRate)
	}

	return nil
}

// sample decodes one sample at the start of data, normalized to [-1, 1).
func sample(data []byte, depth types.BitDepth) float64 {
	switch depth {
	case types.Depth16:
		return float64(int16(binary.LittleEndian.Uint16(data))) / MaxValue16 //nolint:gosec // two's complement conversion for signed PCM samples
	case types.Depth24:
		raw := int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16
		if raw&0x800000 != 0 {
			raw |= ^0xFFFFFF
		}

		return float64(raw) / MaxValue24
	default:
		return float64(int32(binary.LittleEndian.Uint32(data))) / MaxValue32 //nolint:gosec // two's complement conversion for signed PCM samples
	}
}

// Decode reads the whole stream and returns one slice per channel. A trailing partial frame is dropped.
func Decode(reader io.Reader, format types.PCMFormat) ([][]float64, error) {
	if err := validate(format); err != nil {
		return nil, err
	}

	bytesPerSample := int(format.BitDepth / 8) //nolint:gosec // bit depth and channel count are small constants
	numChannels := int(format.Channels)        //nolint:gosec // channel count is small
	frameSize := bytesPerSample * numChannels
	buf := make([]byte, frameSize*chunkFrames)

	channels := make([][]float64, numChannels)

	pending := 0

	for {
		n, err := reader.Read(buf[pending:])
		n += pending

		completeFrames := (n / frameSize) * frameSize
		data := buf[:completeFrames]

		for i := 0; i < len(data); i += bytesPerSample {
			channel := (i / bytesPerSample) % numChannels
			channels[channel] = append(channels[channel], sample(data[i:], format.BitDepth))
		}

		// Keep the bytes of an incomplete frame for the next read.
		pending = copy(buf, buf[completeFrames:n])

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
		}
	}

	return channels, nil
}

// Source streams a single channel of interleaved PCM as a sample source.
type Source struct {
	reader  io.Reader
	format  types.PCMFormat
	channel int

	frame   []byte
	err     error
	samples int64
}

// NewSource selects channel out of the interleaved stream.
func NewSource(reader io.Reader, format types.PCMFormat, channel int) (*Source, error) {
	if err := validate(format); err != nil {
		return nil, err
	}

	if channel < 0 || channel >= int(format.Channels) { //nolint:gosec // channel count is small
		return nil, fmt.Errorf("%w: channel %d of %d", ErrFormat, channel, format.Channels)
	}

	return &Source{
		reader:  reader,
		format:  format,
		channel: channel,
		frame:   make([]byte, int(format.BitDepth/8)*int(format.Channels)), //nolint:gosec // small constants
	}, nil
}

// Read fills buf one frame at a time and returns fewer samples only at end of stream or on error.
func (s *Source) Read(buf []float64) int {
	offset := s.channel * int(s.format.BitDepth/8) //nolint:gosec // bit depth is a small constant

	for i := range buf {
		if s.err != nil {
			return i
		}

		if _, err := io.ReadFull(s.reader, s.frame); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.err = fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
			} else {
				s.err = io.EOF
			}

			return i
		}

		buf[i] = sample(s.frame[offset:], s.format.BitDepth)
		s.samples++
	}

	return len(buf)
}

func (s *Source) SampleRate() int {
	return s.format.SampleRate
}

// Samples returns how many samples were read so far.
func (s *Source) Samples() int64 {
	return s.samples
}

// Err returns the read error that ended the stream, if any other than end of stream.
func (s *Source) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}

	return s.err
}
