package temporal_test

import (
	"testing"

	"github.com/farcloser/whistlelab/internal/temporal"
	"github.com/farcloser/whistlelab/internal/types"
)

func run(integrator temporal.Integrator, pattern string) []temporal.Event {
	var events []temporal.Event

	for _, c := range pattern {
		if ev := integrator.Update(types.Verdict{Whistle: c == '1'}); ev.Kind != temporal.None {
			events = append(events, ev)
		}
	}

	return events
}

func TestAttackReleaseShortBursts(t *testing.T) {
	t.Parallel()

	for attack := 1; attack <= 5; attack++ {
		ar := &temporal.AttackRelease{BlockSize: 100, Attack: attack, Release: 2}

		// Runs of attack-1 positives separated by negatives never confirm.
		pattern := ""
		for range 20 {
			for range attack - 1 {
				pattern += "1"
			}

			pattern += "0"
		}

		if events := run(ar, pattern); len(events) != 0 {
			t.Fatalf("attack %d: got %v", attack, events)
		}
	}
}

func TestAttackReleaseBridgesDropouts(t *testing.T) {
	t.Parallel()

	const attack, release = 3, 2

	ar := &temporal.AttackRelease{BlockSize: 1024, Attack: attack, Release: release}

	events := run(ar, "111"+"00"+"1")
	if len(events) != 1 || events[0].Kind != temporal.Start {
		t.Fatalf("got %v, want a single start", events)
	}

	if events[0].Lookback != 512 {
		t.Fatalf("lookback %d, want half a block", events[0].Lookback)
	}

	if !ar.Active() {
		t.Fatal("interval closed during release")
	}

	// Release+1 consecutive negatives close it.
	events = run(ar, "000")
	if len(events) != 1 || events[0].Kind != temporal.End || ar.Active() {
		t.Fatalf("got %v active=%v, want a single end", events, ar.Active())
	}
}

func TestAttackReleaseNeverPositive(t *testing.T) {
	t.Parallel()

	ar := &temporal.AttackRelease{BlockSize: 1024, Attack: 1, Release: 0}
	if events := run(ar, "0000000000"); len(events) != 0 || ar.Active() {
		t.Fatalf("got %v", events)
	}
}

func TestSimple(t *testing.T) {
	t.Parallel()

	s := &temporal.Simple{BlockSize: 100, MinLength: 400, MinVolume: -20}

	feed := func(whistle bool, volume float64) temporal.Event {
		return s.Update(types.Verdict{Whistle: whistle, Volume: volume})
	}

	// Too quiet: never reported.
	for range 10 {
		if ev := feed(true, -30); ev.Kind != temporal.None {
			t.Fatalf("quiet candidate reported: %v", ev)
		}
	}

	if ev := feed(false, 0); ev.Kind != temporal.None {
		t.Fatalf("unreported candidate ended with %v", ev)
	}

	// Loud enough but only reported once longer than 400 samples.
	for i := range 4 {
		if ev := feed(true, -10); ev.Kind != temporal.None {
			t.Fatalf("block %d reported early", i)
		}
	}

	ev := feed(true, -10)
	if ev.Kind != temporal.Start || ev.Lookback != 250 {
		t.Fatalf("got %v, want start with lookback 250", ev)
	}

	if ev = feed(true, -10); ev.Kind != temporal.None {
		t.Fatalf("second report %v", ev)
	}

	if ev = feed(false, 0); ev.Kind != temporal.End {
		t.Fatalf("got %v, want end", ev)
	}

	// A stream truncated mid-candidate emits nothing once reset.
	feed(true, 0)
	feed(true, 0)
	s.Reset()

	if s.Active() {
		t.Fatal("active after reset")
	}
}

func TestStatistical(t *testing.T) {
	t.Parallel()

	s := &temporal.Statistical{BlockSize: 1024, Okay: 3, Miss: 1}

	// One miss is tolerated while accumulating.
	events := run(s, "0011")
	if len(events) != 0 {
		t.Fatalf("early event %v", events)
	}

	events = run(s, "01")
	if len(events) != 1 || events[0].Kind != temporal.Start {
		t.Fatalf("got %v, want start", events)
	}

	// First accepted block was block 2, confirmation on block 5: (5+1-2-2) blocks back.
	if events[0].Lookback != 2*1024 {
		t.Fatalf("lookback %d", events[0].Lookback)
	}

	events = run(s, "0100")
	if len(events) != 1 || events[0].Kind != temporal.End {
		t.Fatalf("got %v, want end", events)
	}

	// Two consecutive misses drop a candidate.
	if events = run(s, "11001"); len(events) != 0 {
		t.Fatalf("got %v", events)
	}
}

func TestRing(t *testing.T) {
	t.Parallel()

	ring := temporal.NewRing[int](3)

	for i := 1; i <= 3; i++ {
		if _, evicted := ring.Push(i); evicted {
			t.Fatalf("push %d evicted", i)
		}
	}

	if !ring.Full() || ring.Len() != 3 {
		t.Fatalf("len %d", ring.Len())
	}

	old, evicted := ring.Push(4)
	if !evicted || old != 1 {
		t.Fatalf("evicted %v %v, want 1", old, evicted)
	}

	if ring.At(0) != 2 || ring.At(2) != 4 {
		t.Fatalf("order %d..%d", ring.At(0), ring.At(2))
	}

	ring.Reset()

	if ring.Len() != 0 || ring.Cap() != 3 {
		t.Fatalf("after reset len %d cap %d", ring.Len(), ring.Cap())
	}
}

func TestMedian(t *testing.T) {
	t.Parallel()

	id := func(v float64) float64 { return v }

	odd := temporal.NewRing[float64](3)
	for _, v := range []float64{5, 1, 3} {
		odd.Push(v)
	}

	if got := temporal.Median(odd, id, nil); got != 3 {
		t.Fatalf("odd median %v", got)
	}

	even := temporal.NewRing[float64](4)
	for _, v := range []float64{8, 1, 4, 2} {
		even.Push(v)
	}

	if got := temporal.Median(even, id, make([]float64, 0, 4)); got != 3 {
		t.Fatalf("even median %v", got)
	}
}
