// Package temporal debounces per-block verdicts into whistle start and end events.
package temporal

import (
	"github.com/farcloser/whistlelab/internal/types"
)

// Kind of event emitted by an integrator.
type Kind int

const (
	None Kind = iota
	Start
	End
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return "none"
	}
}

// Event is the outcome of one update. For Start, Lookback is the estimated distance in samples between the current
// read cursor and the whistle onset.
type Event struct {
	Kind     Kind
	Lookback int64
}

// Integrator is a per-stream state machine. Implementations are not safe for concurrent use.
type Integrator interface {
	Update(v types.Verdict) Event
	// Active reports whether a whistle is currently being reported.
	Active() bool
	// Reset drops any candidate or running whistle without emitting anything.
	Reset()
}

// AttackRelease starts after Attack consecutive positives and ends after more than Release consecutive negatives.
type AttackRelease struct {
	BlockSize int
	Attack    int
	Release   int

	attack  int
	release int
	active  bool
}

func (a *AttackRelease) Update(v types.Verdict) Event {
	if v.Whistle {
		a.release = 0

		if a.active {
			return Event{}
		}

		a.attack++
		if a.attack < max(a.Attack, 1) {
			return Event{}
		}

		a.attack = 0
		a.active = true

		return Event{Kind: Start, Lookback: int64(a.BlockSize / 2)}
	}

	a.attack = 0

	if !a.active {
		return Event{}
	}

	a.release++
	if a.release <= a.Release {
		return Event{}
	}

	a.release = 0
	a.active = false

	return Event{Kind: End}
}

func (a *AttackRelease) Active() bool {
	return a.active
}

func (a *AttackRelease) Reset() {
	a.attack, a.release, a.active = 0, 0, false
}

// Simple accumulates consecutive positives and reports once the candidate is longer than MinLength samples and its
// loudest block is above MinVolume. The first negative closes the candidate.
type Simple struct {
	BlockSize int
	MinLength int64
	MinVolume float64

	accumulating bool
	reported     bool
	length       int64
	peak         float64
}

func (s *Simple) Update(v types.Verdict) Event {
	if !v.Whistle {
		reported := s.reported
		s.Reset()

		if reported {
			return Event{Kind: End}
		}

		return Event{}
	}

	if s.accumulating {
		s.length += int64(s.BlockSize)
		s.peak = max(s.peak, v.Volume)
	} else {
		s.accumulating = true
		s.length = int64(s.BlockSize)
		s.peak = v.Volume
	}

	if !s.reported && s.length > s.MinLength && s.peak > s.MinVolume {
		s.reported = true

		return Event{Kind: Start, Lookback: s.length / 2}
	}

	return Event{}
}

func (s *Simple) Active() bool {
	return s.reported
}

func (s *Simple) Reset() {
	s.accumulating, s.reported, s.length, s.peak = false, false, 0, 0
}

// Statistical confirms a whistle after Okay accepted blocks, tolerating up to Miss consecutive misses while
// accumulating, and clears it after more than Miss consecutive misses.
type Statistical struct {
	BlockSize int
	Okay      int
	Miss      int

	counter int64 // blocks seen since reset
	started int64 // counter of the first accepted block
	found   int
	misses  int
	done    bool
}

func (s *Statistical) Update(v types.Verdict) Event {
	defer func() { s.counter++ }()

	if s.done {
		if v.Whistle {
			s.misses = 0

			return Event{}
		}

		s.misses++
		if s.misses > s.Miss {
			s.found, s.misses, s.done = 0, 0, false

			return Event{Kind: End}
		}

		return Event{}
	}

	switch {
	case v.Whistle:
		if s.found == 0 {
			s.started = s.counter
		}

		s.found++
		s.misses = 0
	case s.found > 0:
		s.misses++
		if s.misses > s.Miss {
			s.found, s.misses = 0, 0
		}
	}

	if s.found < max(s.Okay, 1) {
		return Event{}
	}

	s.found, s.misses, s.done = 0, 0, true

	// The onset estimate trails the first accepted block by two blocks.
	blocks := s.counter + 1 - s.started - 2

	return Event{Kind: Start, Lookback: max(blocks, 0) * int64(s.BlockSize)}
}

func (s *Statistical) Active() bool {
	return s.done
}

func (s *Statistical) Reset() {
	*s = Statistical{BlockSize: s.BlockSize, Okay: s.Okay, Miss: s.Miss}
}
