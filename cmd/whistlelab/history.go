//nolint:wrapcheck
package main

import (
	"context"
	"fmt"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab/internal/output"
	"github.com/farcloser/whistlelab/internal/store"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded evaluation runs, or show the channels of one run",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "History database",
				Value:   "whistlelab.db",
				Sources: cli.EnvVars("WHISTLELAB_HISTORY"),
			},
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Only list runs of this strategy",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs (0 for all)",
				Value:   20,
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 1 {
				return fmt.Errorf("%w: expected at most one run id, got %d", errArgCount, cmd.NArg())
			}

			history, err := store.Open(cmd.String("db"))
			if err != nil {
				return err
			}
			defer history.Close()

			if cmd.NArg() == 1 {
				run, err := history.Run(ctx, cmd.Args().First())
				if err != nil {
					return err
				}

				channels, err := history.Channels(ctx, run.ID)
				if err != nil {
					return err
				}

				return printAll(cmd.String("format"), []*format.Data{{Object: run.ID, Meta: output.RunToMap(run, channels)}})
			}

			runs, err := history.Runs(ctx, cmd.String("strategy"), cmd.Int("limit"))
			if err != nil {
				return err
			}

			data := make([]*format.Data, 0, len(runs))
			for i := range runs {
				data = append(data, &format.Data{Object: runs[i].ID, Meta: output.RunToMap(&runs[i], nil)})
			}

			return printAll(cmd.String("format"), data)
		},
	}
}
