// Package spectral turns fixed size sample blocks into one-sided spectra.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	ErrWindowSize = errors.New("window size must be even and at least 2")
	ErrBlockSize  = errors.New("block length does not match window size")
)

// Backend selects the FFT implementation.
type Backend int

const (
	// BackendGonum uses a gonum plan built once per frontend.
	BackendGonum Backend = iota
	// BackendReference uses go-dsp. Slower, kept to cross-check the gonum path.
	BackendReference
)

func (b Backend) String() string {
	switch b {
	case BackendGonum:
		return "gonum"
	case BackendReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ParseBackend maps a backend name to its value.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "", "gonum":
		return BackendGonum, nil
	case "reference", "go-dsp":
		return BackendReference, nil
	default:
		return 0, fmt.Errorf("unknown fft backend %q", name)
	}
}

type Options struct {
	WindowSize int     // samples per block, even
	SampleRate int     // used for bin to frequency mapping only
	Hann       bool    // apply sin(pi*i/N)^2 before the transform
	Scale      float64 // multiplier for magnitudes and powers (default 1)
	Backend    Backend
}

// Frontend owns the transform plan, the window table and the output buffers for one window size.
// It is not safe for concurrent use.
type Frontend struct {
	opts   Options
	window []float64
	input  []float64
	plan   *fourier.FFT
	out    Spectrum
}

// New validates the options and builds the plan.
func New(opts Options) (*Frontend, error) {
	if opts.WindowSize < 2 || opts.WindowSize%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrWindowSize, opts.WindowSize)
	}

	if opts.Scale == 0 {
		opts.Scale = 1
	}

	front := &Frontend{
		opts:  opts,
		input: make([]float64, opts.WindowSize),
		out: Spectrum{
			Bins:       make([]complex128, opts.WindowSize/2+1),
			SampleRate: opts.SampleRate,
			WindowSize: opts.WindowSize,
			Scale:      opts.Scale,
		},
	}

	if opts.Hann {
		front.window = Hann(opts.WindowSize)
	}

	if opts.Backend == BackendGonum {
		front.plan = fourier.NewFFT(opts.WindowSize)
	}

	return front, nil
}

// Options returns the effective options.
func (f *Frontend) Options() Options {
	return f.opts
}

// WindowSize returns the block length this frontend accepts.
func (f *Frontend) WindowSize() int {
	return f.opts.WindowSize
}

// Transform windows and transforms the block. The returned spectrum is owned by the frontend and overwritten by the
// next call.
func (f *Frontend) Transform(block []float64) (*Spectrum, error) {
	if len(block) != f.opts.WindowSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBlockSize, len(block), f.opts.WindowSize)
	}

	if f.window != nil {
		for i, s := range block {
			f.input[i] = s * f.window[i]
		}
	} else {
		copy(f.input, block)
	}

	switch f.opts.Backend {
	case BackendReference:
		full := fft.FFTReal(f.input)
		copy(f.out.Bins, full[:len(f.out.Bins)])
	default:
		f.plan.Coefficients(f.out.Bins, f.input)
	}

	return &f.out, nil
}

// Hann returns the periodic raised cosine window sin(pi*i/n)^2.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		s := math.Sin(math.Pi * float64(i) / float64(n))
		w[i] = s * s
	}

	return w
}

// Spectrum is a one-sided transform of WindowSize real samples.
type Spectrum struct {
	Bins       []complex128
	SampleRate int
	WindowSize int
	Scale      float64
}

// Len returns the number of bins, WindowSize/2+1.
func (s *Spectrum) Len() int {
	return len(s.Bins)
}

// Frequency returns the center frequency of bin i in Hz.
func (s *Spectrum) Frequency(i int) float64 {
	return float64(i) * float64(s.SampleRate) / float64(s.WindowSize)
}

// Index returns the first bin whose frequency is at or above hz.
func (s *Spectrum) Index(hz float64) int {
	return BinIndex(hz, s.SampleRate, s.WindowSize)
}

// Magnitudes writes |c|*Scale for every bin into dst, growing it if needed.
func (s *Spectrum) Magnitudes(dst []float64) []float64 {
	dst = resize(dst, len(s.Bins))
	for i, c := range s.Bins {
		dst[i] = cmplx.Abs(c) * s.Scale
	}

	return dst
}

// Powers writes |c|^2*Scale for every bin into dst, growing it if needed.
func (s *Spectrum) Powers(dst []float64) []float64 {
	dst = resize(dst, len(s.Bins))
	for i, c := range s.Bins {
		re, im := real(c), imag(c)
		dst[i] = (re*re + im*im) * s.Scale
	}

	return dst
}

// BinIndex maps a frequency to ceil(hz*windowSize/sampleRate).
func BinIndex(hz float64, sampleRate, windowSize int) int {
	return int(math.Ceil(hz * float64(windowSize) / float64(sampleRate)))
}

func resize(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}

	return dst[:n]
}
