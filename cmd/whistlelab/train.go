//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/classify"
	"github.com/farcloser/whistlelab/internal/corpus"
	"github.com/farcloser/whistlelab/internal/detector"
	"github.com/farcloser/whistlelab/internal/output"
)

var errSingleStrategy = errors.New("training takes exactly one strategy")

func trainCommand() *cli.Command {
	defaults := detector.DefaultTrainOptions()

	return &cli.Command{
		Name:      "train",
		Usage:     "Collect labeled feature vectors from a database and fit a classifier",
		ArgsUsage: "<database.json>",
		Flags: []cli.Flag{
			strategyFlag(whistlelab.AdaptiveHarmonic.String()),
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Classifier to fit: network, linear, or a rule kind to only export the table",
				Value:   string(defaults.Kind),
			},
			&cli.IntFlag{
				Name:  "hidden",
				Usage: "Hidden units of the network",
				Value: defaults.Network.Hidden,
			},
			&cli.IntFlag{
				Name:  "epochs",
				Usage: "Training budget in epochs",
				Value: defaults.Network.MaxEpochs,
			},
			&cli.FloatFlag{
				Name:  "desired-error",
				Usage: "Stop the network once the mean squared error reaches this",
				Value: defaults.Network.DesiredError,
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Seed of the initial network weights",
				Value: int(defaults.Network.Seed), //nolint:gosec // small default
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"o"},
				Usage:   "Write the fitted model to this file",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write the feature table (csv, and C5.0 names, data and costs) into this directory",
			},
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based)",
				Value: 0,
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

			if len(strategies) != 1 {
				return fmt.Errorf("%w: got %d", errSingleStrategy, len(strategies))
			}

			kind, err := classify.ParseKind(cmd.String("kind"))
			if err != nil {
				return err
			}

			opts := detector.DefaultTrainOptions()
			opts.Kind = kind
			opts.Network.Hidden = cmd.Int("hidden")
			opts.Network.MaxEpochs = cmd.Int("epochs")
			opts.Network.DesiredError = cmd.Float("desired-error")
			opts.Network.Seed = uint64(max(cmd.Int("seed"), 0)) //nolint:gosec // clamped
			opts.Linear.Epochs = cmd.Int("epochs")

			profile, err := loadProfile(cmd)
			if err != nil {
				return err
			}

			labeled, err := corpus.Load(ctx, cmd.Args().First(), corpus.Options{
				Decoder: corpus.FFmpeg{StreamIndex: cmd.Int("stream")},
				Workers: profile.Evaluation.Workers,
			})
			if err != nil {
				return err
			}

			det, report, err := whistlelab.Train(ctx, strategies[0], profile, labeled, opts)
			if err != nil {
				return err
			}

			meta := output.ReportToMap(report)

			if path := cmd.String("model"); path != "" {
				if !report.Swapped {
					return fmt.Errorf("%w: %s", classify.ErrNotTrainable, kind)
				}

				if err = classify.SaveFile(path, det.Classifier()); err != nil {
					return err
				}

				meta["model"] = path
			}

			if dir := cmd.String("export"); dir != "" {
				files, err := exportTable(dir, report.Table)
				if err != nil {
					return err
				}

				meta["exported"] = files
			}

			return printAll(cmd.String("format"), []*format.Data{{Object: report.Detector, Meta: meta}})
		},
	}
}

// exportTable writes <name>.csv, .names, .data and .costs into dir.
func exportTable(dir string, table *classify.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", classify.ErrExport, err)
	}

	writers := []struct {
		ext   string
		write func(io.Writer) error
	}{
		{".csv", table.WriteCSV},
		{".names", table.WriteNames},
		{".data", table.WriteData},
		{".costs", classify.WriteCosts},
	}

	files := make([]string, 0, len(writers))

	for _, w := range writers {
		path := filepath.Join(dir, table.Name+w.ext)

		if err := writeFile(path, w.write); err != nil {
			return nil, err
		}

		files = append(files, path)
	}

	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	out, err := os.Create(path) //nolint:gosec // CLI tool writes user-specified paths
	if err != nil {
		return fmt.Errorf("%w: %w", classify.ErrExport, err)
	}

	if err = write(out); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}
