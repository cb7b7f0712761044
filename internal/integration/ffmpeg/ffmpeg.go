// Package ffmpeg decodes audio containers into raw PCM.
package ffmpeg

import "time"

const (
	name = "ffmpeg"
	// Long recordings of a whole match take a while to decode.
	timeout = 5 * time.Minute
)
