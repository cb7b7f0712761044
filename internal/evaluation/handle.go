package evaluation

import (
	"github.com/farcloser/whistlelab/internal/types"
)

// Handle streams one channel to a detector and records what it reports.
type Handle struct {
	channel *types.Channel

	pos        int64
	detections []int64
	reportedAt []int64
}

func NewHandle(channel *types.Channel) *Handle {
	return &Handle{channel: channel}
}

// Read copies the next samples into buf and advances the cursor.
func (h *Handle) Read(buf []float64) int {
	if h.pos >= int64(len(h.channel.Samples)) {
		return 0
	}

	n := copy(buf, h.channel.Samples[h.pos:])
	h.pos += int64(n)

	return n
}

func (h *Handle) SampleRate() int {
	return h.channel.SampleRate
}

// Report records a detection at the cursor plus offset, and the cursor itself for delay computation.
func (h *Handle) Report(offset int64) {
	h.detections = append(h.detections, h.pos+offset)
	h.reportedAt = append(h.reportedAt, h.pos)
}

func (h *Handle) InsideWhistle(offset int64) bool {
	pos := h.pos + offset
	for _, label := range h.channel.Labels {
		if label.Contains(pos) {
			return true
		}
	}

	return false
}

// Position returns the read cursor.
func (h *Handle) Position() int64 {
	return h.pos
}

// Detections returns the reported sample positions in report order.
func (h *Handle) Detections() []int64 {
	return h.detections
}

// Rewind resets the cursor and forgets all detections.
func (h *Handle) Rewind() {
	h.pos = 0
	h.detections = h.detections[:0]
	h.reportedAt = h.reportedAt[:0]
}
