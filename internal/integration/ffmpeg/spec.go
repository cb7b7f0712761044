package ffmpeg

import (
	"strconv"

	"github.com/farcloser/whistlelab/internal/types"
)

// bitDepthToSpec returns the raw output format, s16le, s24le or s32le.
func bitDepthToSpec(bitDepth types.BitDepth) string {
	return "s" + strconv.FormatUint(uint64(bitDepth), 10) + "le"
}

// bitDepthToCodec returns the matching PCM codec.
func bitDepthToCodec(bitDepth types.BitDepth) string {
	return "pcm_" + bitDepthToSpec(bitDepth)
}

// arguments builds the command line decoding streamIndex of stdin to stdout. A non-zero sample rate or channel
// count in format asks ffmpeg to convert.
func arguments(streamIndex int, format *types.PCMFormat) []string {
	args := []string{
		"-i", "-",
		"-map", "0:a:" + strconv.Itoa(streamIndex),
		"-f", bitDepthToSpec(format.BitDepth),
		"-acodec", bitDepthToCodec(format.BitDepth),
	}

	if format.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(format.SampleRate))
	}

	if format.Channels > 0 {
		args = append(args, "-ac", strconv.FormatUint(uint64(format.Channels), 10))
	}

	return append(args, "-v", "quiet", "-")
}
