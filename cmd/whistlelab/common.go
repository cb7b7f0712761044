//nolint:wrapcheck
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
	"github.com/farcloser/whistlelab/internal/config"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	errArgCount        = errors.New("wrong number of arguments")
	errInvalidBitDepth = errors.New("must be 16, 24, or 32")
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: console, json, markdown",
		Value:   "console",
	}
}

func strategyFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "strategy",
		Aliases: []string{"s"},
		Usage:   "Detection strategy (see list), comma separated where several are accepted, or all",
		Value:   value,
	}
}

func expectArgs(cmd *cli.Command, n int, usage string) error {
	if cmd.NArg() != n {
		return fmt.Errorf("%w: expected %s, got %d arguments", errArgCount, usage, cmd.NArg())
	}

	return nil
}

// loadProfile reads --profile, or returns the defaults.
func loadProfile(cmd *cli.Command) (*config.Profile, error) {
	path := cmd.String("profile")
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

// parseStrategies accepts a comma separated list or "all".
func parseStrategies(raw string) ([]whistlelab.Strategy, error) {
	if strings.TrimSpace(raw) == "all" {
		return whistlelab.Names(), nil
	}

	var out []whistlelab.Strategy

	for name := range strings.SplitSeq(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		s, err := whistlelab.ParseStrategy(name)
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", whistlelab.ErrUnknownStrategy, raw)
	}

	return out, nil
}

func toBitDepth(v int) (types.BitDepth, error) {
	switch v {
	case 16:
		return types.Depth16, nil
	case 24:
		return types.Depth24, nil
	case 32:
		return types.Depth32, nil
	default:
		return 0, errInvalidBitDepth
	}
}

func printAll(formatName string, data []*format.Data) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	return formatter.PrintAll(data, os.Stdout)
}
