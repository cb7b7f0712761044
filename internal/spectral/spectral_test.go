package spectral_test

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/farcloser/whistlelab/internal/spectral"
)

func sine(n, sampleRate int, hz, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
	}

	return out
}

func TestZeroBlockYieldsZeroSpectrum(t *testing.T) {
	t.Parallel()

	for _, backend := range []spectral.Backend{spectral.BackendGonum, spectral.BackendReference} {
		for _, size := range []int{2, 4, 6, 10, 64, 1000, 1024, 4096} {
			for _, hann := range []bool{false, true} {
				front, err := spectral.New(spectral.Options{WindowSize: size, SampleRate: 44100, Hann: hann, Backend: backend})
				if err != nil {
					t.Fatalf("New(%d): %v", size, err)
				}

				spec, err := front.Transform(make([]float64, size))
				if err != nil {
					t.Fatalf("Transform(%d): %v", size, err)
				}

				if spec.Len() != size/2+1 {
					t.Fatalf("size %d: got %d bins, want %d", size, spec.Len(), size/2+1)
				}

				for i, c := range spec.Bins {
					if c != 0 {
						t.Fatalf("%s size %d hann %v: bin %d = %v, want 0", backend, size, hann, i, c)
					}
				}
			}
		}
	}
}

func TestInvalidWindowSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{-2, 0, 1, 3, 1023} {
		if _, err := spectral.New(spectral.Options{WindowSize: size}); !errors.Is(err, spectral.ErrWindowSize) {
			t.Errorf("window %d: got %v, want ErrWindowSize", size, err)
		}
	}
}

func TestBlockSizeMismatch(t *testing.T) {
	t.Parallel()

	front, err := spectral.New(spectral.Options{WindowSize: 8})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = front.Transform(make([]float64, 7)); !errors.Is(err, spectral.ErrBlockSize) {
		t.Fatalf("got %v, want ErrBlockSize", err)
	}
}

func TestSinePeakBin(t *testing.T) {
	t.Parallel()

	const (
		size = 1024
		rate = 16000
	)

	// 3000 Hz lands exactly on bin 192.
	front, err := spectral.New(spectral.Options{WindowSize: size, SampleRate: rate, Hann: true, Scale: 2.0 / size})
	if err != nil {
		t.Fatal(err)
	}

	spec, err := front.Transform(sine(size, rate, 3000, 1))
	if err != nil {
		t.Fatal(err)
	}

	mags := spec.Magnitudes(nil)

	peak := 0
	for i := range mags {
		if mags[i] > mags[peak] {
			peak = i
		}
	}

	if peak != 192 {
		t.Fatalf("peak at bin %d, want 192", peak)
	}

	if got := spec.Frequency(peak); got != 3000 {
		t.Fatalf("Frequency(%d) = %v, want 3000", peak, got)
	}

	// Hann halves a bin-centered sine amplitude.
	if math.Abs(mags[peak]-0.5) > 1e-9 {
		t.Fatalf("peak magnitude %v, want 0.5", mags[peak])
	}
}

func TestBackendsAgree(t *testing.T) {
	t.Parallel()

	const size = 512

	block := sine(size, 44100, 2750, 0.7)
	for i := range block {
		block[i] += 0.1 * math.Cos(float64(i)*0.37)
	}

	gonumFront, err := spectral.New(spectral.Options{WindowSize: size, Hann: true})
	if err != nil {
		t.Fatal(err)
	}

	refFront, err := spectral.New(spectral.Options{WindowSize: size, Hann: true, Backend: spectral.BackendReference})
	if err != nil {
		t.Fatal(err)
	}

	a, err := gonumFront.Transform(block)
	if err != nil {
		t.Fatal(err)
	}

	b, err := refFront.Transform(block)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.Bins {
		if cmplx.Abs(a.Bins[i]-b.Bins[i]) > 1e-8 {
			t.Fatalf("bin %d: gonum %v, reference %v", i, a.Bins[i], b.Bins[i])
		}
	}
}

func TestPowersScale(t *testing.T) {
	t.Parallel()

	front, err := spectral.New(spectral.Options{WindowSize: 4, Scale: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	spec, err := front.Transform([]float64{1, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}

	powers := spec.Powers(nil)
	if powers[0] != 8 {
		t.Fatalf("DC power = %v, want 8", powers[0])
	}

	if powers[1] != 0 || powers[2] != 0 {
		t.Fatalf("non-DC powers = %v, want 0", powers[1:])
	}
}

func TestHann(t *testing.T) {
	t.Parallel()

	w := spectral.Hann(8)
	if w[0] != 0 {
		t.Fatalf("w[0] = %v", w[0])
	}

	if math.Abs(w[4]-1) > 1e-12 {
		t.Fatalf("w[4] = %v, want 1", w[4])
	}

	if math.Abs(w[2]-w[6]) > 1e-12 {
		t.Fatalf("window not symmetric: %v vs %v", w[2], w[6])
	}
}

func TestBinIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hz         float64
		rate, size int
		want       int
	}{
		{2000, 44100, 4096, 186},
		{5000, 44100, 4096, 465},
		{3000, 16000, 1024, 192},
		{0, 44100, 1024, 0},
	}

	for _, tt := range tests {
		if got := spectral.BinIndex(tt.hz, tt.rate, tt.size); got != tt.want {
			t.Errorf("BinIndex(%v, %d, %d) = %d, want %d", tt.hz, tt.rate, tt.size, got, tt.want)
		}
	}
}
