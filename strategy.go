package whistlelab

import (
	"errors"
	"fmt"
	"slices"

	"github.com/farcloser/whistlelab/internal/config"
	"github.com/farcloser/whistlelab/internal/detector"
)

var ErrUnknownStrategy = errors.New("unknown detection strategy")

// Strategy names a detector.
type Strategy string

const (
	PeakRatio        Strategy = "peak-ratio"
	AdaptiveHarmonic Strategy = "adaptive-harmonic"
	OvertoneLadder   Strategy = "overtone-ladder"
	BackgroundGrowth Strategy = "background-growth"
	PeakDuration     Strategy = "peak-duration"
)

func (s Strategy) String() string {
	return string(s)
}

type entry struct {
	description string
	build       func(*config.Profile) (*detector.Pipeline, error)
}

var registry = map[Strategy]entry{
	PeakRatio: {
		description: "in-band power over the power above the band, debounced by attack and release",
		build: func(p *config.Profile) (*detector.Pipeline, error) {
			return detector.NewPeakRatio(p.PeakRatio)
		},
	},
	AdaptiveHarmonic: {
		description: "adaptive fundamental and second harmonic bands; rule tree or trained network",
		build: func(p *config.Profile) (*detector.Pipeline, error) {
			return detector.NewHarmonic(p.Harmonic)
		},
	},
	OvertoneLadder: {
		description: "fundamental and overtone peaks against their range means",
		build: func(p *config.Profile) (*detector.Pipeline, error) {
			return detector.NewOvertone(p.Overtone)
		},
	},
	BackgroundGrowth: {
		description: "whistle band trimmed of background against spectrum and one second statistics",
		build: func(p *config.Profile) (*detector.Pipeline, error) {
			return detector.NewBackground(p.Background)
		},
	},
	PeakDuration: {
		description: "smoothed peak frequency held for a minimum duration and volume",
		build: func(p *config.Profile) (*detector.Pipeline, error) {
			return detector.NewDuration(p.Duration)
		},
	},
}

// Names returns every strategy, sorted.
func Names() []Strategy {
	names := make([]Strategy, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Describe returns a one line summary of the strategy.
func Describe(s Strategy) string {
	return registry[s].description
}

func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := registry[s]; !ok {
		return "", fmt.Errorf("%w: %q (known: %v)", ErrUnknownStrategy, name, Names())
	}

	return s, nil
}
