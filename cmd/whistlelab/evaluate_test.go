package main_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/agar/pkg/agar"

	"github.com/farcloser/whistlelab/internal/testutils"
)

func TestEvaluateCLI(t *testing.T) {
	testCase := testutils.Setup()

	testCase.SubTests = []*test.Case{
		{
			Description: "evaluate without arguments fails",
			Command:     test.Command("evaluate"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "evaluate nonexistent database fails",
			Command:     test.Command("evaluate", "/nonexistent/path/whistles.json"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "evaluate unknown strategy fails",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("db", testutils.Database(data, []string{agar.Genuine16bit44k(data, helpers)}))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("evaluate", "--strategy", "kazoo", data.Labels().Get("db"))
			},
			Expected: test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "evaluate every strategy on an unlabeled recording",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("db", testutils.Database(data, []string{agar.Genuine16bit44k(data, helpers)}))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("evaluate", data.Labels().Get("db"))
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{
					ExitCode: expect.ExitCodeSuccess,
					Output: expect.All(
						expectContains("peak-ratio"),
						expectContains("peak-duration"),
						expectContains("summary:"),
					),
				}
			},
		},
		{
			Description: "evaluate records runs into the history",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("db", testutils.Database(data, []string{agar.Genuine16bit44k(data, helpers)}))
				data.Labels().Set("history", data.Temp().Path("history.db"))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("evaluate", "--strategy", "peak-ratio,overtone-ladder",
					"--record", data.Labels().Get("history"), "--format", "json", data.Labels().Get("db"))
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{
					ExitCode: expect.ExitCodeSuccess,
					Output: expect.All(
						expectCount(`"run_id"`, 2),
						expectContains(`"true_positives"`),
					),
				}
			},
		},
		{
			Description: "history lists recorded runs",
			Setup: func(data test.Data, helpers test.Helpers) {
				db := testutils.Database(data, []string{agar.Genuine16bit44k(data, helpers)})
				data.Labels().Set("history", data.Temp().Path("history.db"))
				helpers.Ensure("evaluate", "--strategy", "background-growth", "--record", data.Labels().Get("history"), db)
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("history", "--db", data.Labels().Get("history"))
			},
			Expected: test.Expects(expect.ExitCodeSuccess, nil, expect.All(
				expectContains("background-growth"),
				expectContains("whistles.json"),
			)),
		},
		{
			Description: "history of an unknown run fails",
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("history", "--db", data.Temp().Path("empty.db"), "no-such-run")
			},
			Expected: test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
	}

	testCase.Run(t)
}
