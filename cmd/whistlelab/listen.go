//nolint:wrapcheck
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/capture"
	"github.com/farcloser/whistlelab/internal/types"
)

func listenCommand() *cli.Command {
	defaults := capture.DefaultOptions()

	return &cli.Command{
		Name:  "listen",
		Usage: "Run one detector on the default microphone until interrupted",
		Flags: []cli.Flag{
			strategyFlag(whistlelab.AdaptiveHarmonic.String()),
			&cli.IntFlag{
				Name:    "sample-rate",
				Aliases: []string{"r"},
				Usage:   "Capture sample rate in Hz",
				Value:   defaults.SampleRate,
			},
			&cli.IntFlag{
				Name:  "frames",
				Usage: "Frames per device buffer",
				Value: defaults.FramesPerBuffer,
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Stop after this long (default: until interrupted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
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

			mic, err := capture.Open(capture.Options{
				SampleRate:      cmd.Int("sample-rate"),
				FramesPerBuffer: cmd.Int("frames"),
			})
			if err != nil {
				return err
			}
			defer mic.Close()

			if d := cmd.Duration("duration"); d > 0 {
				var cancel context.CancelFunc

				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			go func() {
				<-ctx.Done()
				mic.Stop()
			}()

			fmt.Fprintf(os.Stderr, "Listening with %s at %d Hz, interrupt to stop\n", det.Name(), mic.SampleRate())

			count := 0
			report := types.ReporterFunc(func(offset int64) {
				count++
				at := time.Duration(float64(mic.Samples()+offset) / float64(mic.SampleRate()) * float64(time.Second))
				fmt.Fprintf(os.Stdout, "whistle %d at %s\n", count, at.Truncate(time.Millisecond))
			})

			if err = det.Run(mic, report); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "%d whistles\n", count)

			return mic.Err()
		},
	}
}
