// Package config reads detector profiles: ini files overriding the default detector options.
//
//	backend = gonum
//
//	[evaluation]
//	false_positive_window = 1s
//	workers = 4
//
//	[adaptive-harmonic]
//	window_size = 4096
//	attack = 3
//
//	[adaptive-harmonic.band]
//	boundary = fixed
//
//	[models]
//	adaptive-harmonic = models/adaptive-harmonic.json
//
// Relative model paths are resolved against the profile directory.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/detector"
	"github.com/farcloser/whistlelab/internal/features"
	"github.com/farcloser/whistlelab/internal/spectral"
)

var ErrInvalidProfile = errors.New("invalid profile")

// Section names.
const (
	sectionEvaluation = "evaluation"
	sectionModels     = "models"
	sectionPeakRatio  = "peak-ratio"
	sectionHarmonic   = "adaptive-harmonic"
	sectionOvertone   = "overtone-ladder"
	sectionBackground = "background-growth"
	sectionDuration   = "peak-duration"
)

type Evaluation struct {
	FalsePositiveWindow time.Duration `ini:"false_positive_window"`
	Workers             int           `ini:"workers"`
}

// Profile holds the options of every detector plus evaluation settings.
type Profile struct {
	Backend    spectral.Backend
	Evaluation Evaluation
	PeakRatio  detector.PeakRatioOptions
	Harmonic   detector.HarmonicOptions
	Overtone   detector.OvertoneOptions
	Background detector.BackgroundOptions
	Duration   detector.DurationOptions
	// Models maps a detector name to a trained model file.
	Models map[string]string
}

// Default returns the built-in profile.
func Default() *Profile {
	return &Profile{
		Evaluation: Evaluation{FalsePositiveWindow: time.Second},
		PeakRatio:  detector.DefaultPeakRatioOptions(),
		Harmonic:   detector.DefaultHarmonicOptions(),
		Overtone:   detector.DefaultOvertoneOptions(),
		Background: detector.DefaultBackgroundOptions(),
		Duration:   detector.DefaultDurationOptions(),
		Models:     map[string]string{},
	}
}

// Load reads a profile file on top of the defaults.
func Load(path string) (*Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	profile, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	for name, model := range profile.Models {
		if !filepath.IsAbs(model) {
			profile.Models[name] = filepath.Join(base, model)
		}
	}

	return profile, nil
}

// Parse reads a profile from memory. Model paths are kept as written.
func Parse(data []byte) (*Profile, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	return parse(file)
}

func parse(file *ini.File) (*Profile, error) {
	profile := Default()

	backend, err := spectral.ParseBackend(file.Section("").Key("backend").MustString(spectral.BackendGonum.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	profile.Backend = backend

	targets := []struct {
		section string
		target  any
	}{
		{sectionEvaluation, &profile.Evaluation},
		{sectionPeakRatio, &profile.PeakRatio},
		{sectionHarmonic, &profile.Harmonic},
		{sectionHarmonic + ".band", &profile.Harmonic.Band},
		{sectionOvertone, &profile.Overtone},
		{sectionOvertone + ".ladder", &profile.Overtone.Ladder},
		{sectionBackground, &profile.Background},
		{sectionDuration, &profile.Duration},
	}

	for _, t := range targets {
		if !file.HasSection(t.section) {
			continue
		}

		if err = file.Section(t.section).StrictMapTo(t.target); err != nil {
			return nil, fmt.Errorf("%w: [%s]: %w", ErrInvalidProfile, t.section, err)
		}
	}

	if file.HasSection(sectionHarmonic + ".band") {
		boundary := file.Section(sectionHarmonic + ".band").Key("boundary").String()

		profile.Harmonic.Band.Boundary, err = features.ParseBoundary(boundary)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
	}

	if file.HasSection(sectionModels) {
		for _, key := range file.Section(sectionModels).Keys() {
			profile.Models[key.Name()] = key.String()
		}
	}

	profile.apply()

	return profile, nil
}

// apply propagates the shared backend to every detector.
func (p *Profile) apply() {
	p.PeakRatio.Backend = p.Backend
	p.Harmonic.Backend = p.Backend
	p.Overtone.Backend = p.Backend
	p.Background.Backend = p.Backend
	p.Duration.Backend = p.Backend
}
