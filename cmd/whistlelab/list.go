//nolint:wrapcheck
package main

import (
	"context"

	"github.com/farcloser/primordium/format"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the detection strategies",
		Flags: []cli.Flag{formatFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			data := make([]*format.Data, 0, len(whistlelab.Names()))

			for _, name := range whistlelab.Names() {
				data = append(data, &format.Data{
					Object: name.String(),
					Meta: map[string]any{
						"description": whistlelab.Describe(name),
					},
				})
			}

			return printAll(cmd.String("format"), data)
		},
	}
}
