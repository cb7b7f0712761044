//nolint:wrapcheck
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/corpus"
	"github.com/farcloser/whistlelab/internal/output"
	"github.com/farcloser/whistlelab/internal/store"
	"github.com/farcloser/whistlelab/internal/watch"
)

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "Run detectors over a labeled database and score their detections",
		ArgsUsage: "<database.json>",
		Flags: []cli.Flag{
			strategyFlag("all"),
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Concurrent detectors (default: from profile, else GOMAXPROCS)",
			},
			&cli.DurationFlag{
				Name:  "fp-window",
				Usage: "Minimum spacing between two counted false positives (default: from profile)",
			},
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:    "record",
				Usage:   "Record the runs into this history database",
				Sources: cli.EnvVars("WHISTLELAB_HISTORY"),
			},
			&cli.BoolFlag{
				Name:  "channels",
				Usage: "Include per channel scores",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Evaluate again whenever the database or the profile changes",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := expectArgs(cmd, 1, "<database.json>"); err != nil {
				return err
			}

			strategies, err := parseStrategies(cmd.String("strategy"))
			if err != nil {
				return err
			}

			var history *store.Store

			if path := cmd.String("record"); path != "" {
				if history, err = store.Open(path); err != nil {
					return err
				}
				defer history.Close()
			}

			run := func() error {
				return runEvaluate(ctx, cmd, strategies, history)
			}

			if err = run(); err != nil || !cmd.Bool("watch") {
				return err
			}

			watched := []string{cmd.Args().First()}
			if profile := cmd.String("profile"); profile != "" {
				watched = append(watched, profile)
			}

			fmt.Fprintf(os.Stderr, "Watching %v, interrupt to stop\n", watched)

			return watch.Files(ctx, watched, watch.DefaultDebounce, run)
		},
	}
}

// runEvaluate loads the profile and the database, then evaluates and prints every strategy.
func runEvaluate(ctx context.Context, cmd *cli.Command, strategies []whistlelab.Strategy, history *store.Store) error {
	dbPath := cmd.Args().First()

	profile, err := loadProfile(cmd)
	if err != nil {
		return err
	}

	if cmd.IsSet("workers") {
		profile.Evaluation.Workers = cmd.Int("workers")
	}

	if cmd.IsSet("fp-window") {
		profile.Evaluation.FalsePositiveWindow = cmd.Duration("fp-window")
	}

	loadStart := time.Now()

	labeled, err := corpus.Load(ctx, dbPath, corpus.Options{
		Decoder: corpus.FFmpeg{StreamIndex: cmd.Int("stream")},
		Workers: profile.Evaluation.Workers,
	})
	if err != nil {
		return fmt.Errorf("loading %s: %w", dbPath, err)
	}

	fmt.Fprintf(os.Stderr, "Loaded %d channels in %s\n",
		len(labeled.Channels), time.Since(loadStart).Truncate(time.Millisecond))

	data := make([]*format.Data, 0, len(strategies))

	for _, s := range strategies {
		start := time.Now()

		result, err := whistlelab.Evaluate(ctx, s, profile, labeled)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", s, err)
		}

		fmt.Fprintf(os.Stderr, "%s: %d/%d in %s\n",
			s, result.TruePositives, result.Positives, time.Since(start).Truncate(time.Millisecond))

		meta := output.ResultToMap(result, cmd.Bool("channels"))

		if history != nil {
			id, err := history.Record(ctx, labeled.Name, result)
			if err != nil {
				return err
			}

			slog.Debug("recorded run", "strategy", s, "id", id)

			meta["run_id"] = id
		}

		data = append(data, &format.Data{Object: s.String(), Meta: meta})
	}

	return printAll(cmd.String("format"), data)
}
