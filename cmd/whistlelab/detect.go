//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/farcloser/primordium/fault"
	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/corpus"
	"github.com/farcloser/whistlelab/internal/evaluation"
	"github.com/farcloser/whistlelab/internal/output"
	"github.com/farcloser/whistlelab/internal/pcm"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	errStdinNeedsRaw = errors.New("reading from stdin requires raw PCM (--sample-rate)")
	errChannelRange  = errors.New("channel out of range")
)

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Run one detector over an audio file, or raw PCM, and print the whistles it reports",
		ArgsUsage: "<file | ->",
		Flags: []cli.Flag{
			strategyFlag(whistlelab.AdaptiveHarmonic.String()),
			&cli.IntFlag{
				Name:  "channel",
				Usage: "Channel to analyze (0-based)",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based), when decoding through ffmpeg",
				Value: 0,
			},

			// Raw PCM flags. Setting --sample-rate skips ffmpeg.
			&cli.IntFlag{
				Name:    "sample-rate",
				Aliases: []string{"r"},
				Usage:   "Treat the input as raw PCM at this sample rate in Hz",
			},
			&cli.IntFlag{
				Name:    "bit-depth",
				Aliases: []string{"b"},
				Usage:   "Raw PCM bit depth (16, 24, or 32)",
				Value:   16,
			},
			&cli.IntFlag{
				Name:    "channels",
				Aliases: []string{"c"},
				Usage:   "Raw PCM channel count",
				Value:   1,
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := expectArgs(cmd, 1, "<file | ->"); err != nil {
				return err
			}

			strategies, err := parseStrategies(cmd.String("strategy"))
			if err != nil {
				return err
			}

			if len(strategies) != 1 {
				return fmt.Errorf("%w: got %d", errSingleStrategy, len(strategies))
			}

			profile, err := loadProfile(cmd)
			if err != nil {
				return err
			}

			det, err := whistlelab.New(strategies[0], profile)
			if err != nil {
				return err
			}

			inputPath := cmd.Args().First()

			var (
				detections []int64
				sampleRate int
			)

			if cmd.Int("sample-rate") > 0 {
				pcmFormat, err := parsePCMFormat(cmd)
				if err != nil {
					return err
				}

				detections, err = detectRaw(det, inputPath, pcmFormat, cmd.Int("channel"))
				if err != nil {
					return err
				}

				sampleRate = pcmFormat.SampleRate
			} else {
				if inputPath == "-" {
					return errStdinNeedsRaw
				}

				channel, err := decodeChannel(ctx, inputPath, cmd.Int("stream"), cmd.Int("channel"))
				if err != nil {
					return err
				}

				handle := evaluation.NewHandle(channel)
				if err = det.Run(handle, handle); err != nil {
					return err
				}

				detections = handle.Detections()
				sampleRate = channel.SampleRate
			}

			meta := output.DetectionsToMap(detections, sampleRate)
			meta["strategy"] = det.Name()

			return printAll(cmd.String("format"), []*format.Data{{Object: inputPath, Meta: meta}})
		},
	}
}

func parsePCMFormat(cmd *cli.Command) (types.PCMFormat, error) {
	bitDepth, err := toBitDepth(cmd.Int("bit-depth"))
	if err != nil {
		return types.PCMFormat{}, fmt.Errorf("--bit-depth: %w", err)
	}

	channels := cmd.Int("channels")
	if channels <= 0 {
		return types.PCMFormat{}, fmt.Errorf("--channels: %w: %d", pcm.ErrFormat, channels)
	}

	return types.PCMFormat{
		SampleRate: cmd.Int("sample-rate"),
		BitDepth:   bitDepth,
		Channels:   uint(channels), //nolint:gosec // validated positive value
	}, nil
}

// detectRaw streams the selected channel straight into the detector.
func detectRaw(det evaluation.Detector, inputPath string, pcmFormat types.PCMFormat, channel int) ([]int64, error) {
	reader, cleanup, err := openInput(inputPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := pcm.NewSource(reader, pcmFormat, channel)
	if err != nil {
		return nil, err
	}

	var detections []int64

	report := types.ReporterFunc(func(offset int64) {
		detections = append(detections, src.Samples()+offset)
	})

	if err = det.Run(src, report); err != nil {
		return nil, err
	}

	return detections, src.Err()
}

// openInput opens a file, or stdin for "-".
func openInput(inputPath string) (io.Reader, func(), error) {
	if inputPath == "-" {
		return os.Stdin, func() {}, nil
	}

	file, err := os.Open(inputPath) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return file, func() { _ = file.Close() }, nil
}

func decodeChannel(ctx context.Context, inputPath string, stream, index int) (*types.Channel, error) {
	sampleRate, channels, err := corpus.FFmpeg{StreamIndex: stream}.Decode(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(channels) {
		return nil, fmt.Errorf("%w: %d of %d", errChannelRange, index, len(channels))
	}

	return &types.Channel{
		Name:       fmt.Sprintf("%s#%d", inputPath, index),
		Index:      index,
		SampleRate: sampleRate,
		Samples:    channels[index],
	}, nil
}
