package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab/version"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appl := &cli.Command{
		Name:    version.Name(),
		Usage:   "Whistle detector evaluation and training tool",
		Version: version.Version() + " " + version.Commit(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error",
				Value:   "warn",
				Sources: cli.EnvVars("WHISTLELAB_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Detector profile (ini) overriding the default options",
				Sources: cli.EnvVars("WHISTLELAB_PROFILE"),
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			listCommand(),
			evaluateCommand(),
			trainCommand(),
			detectCommand(),
			listenCommand(),
			scanCommand(),
			historyCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		stop()
		os.Exit(1)
	}
}

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return ctx, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return ctx, nil
}
