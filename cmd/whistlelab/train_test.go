package main_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/agar/pkg/agar"

	"github.com/farcloser/whistlelab/internal/testutils"
	"github.com/farcloser/whistlelab/internal/types"
)

func TestTrainCLI(t *testing.T) {
	testCase := testutils.Setup()

	testCase.SubTests = []*test.Case{
		{
			Description: "train without arguments fails",
			Command:     test.Command("train"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "train rejects an unknown classifier kind",
			Command:     test.Command("train", "--kind", "forest", "/nonexistent/whistles.json"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "train takes a single strategy",
			Command:     test.Command("train", "--strategy", "peak-ratio,peak-duration", "/nonexistent/whistles.json"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "train exports the feature table of a rule kind",
			Setup: func(data test.Data, helpers test.Helpers) {
				file := agar.Genuine16bit44k(data, helpers)
				data.Labels().Set("db", testutils.Database(data, []string{file},
					types.WhistleLabel{Start: 22050, End: 44100}))
				data.Labels().Set("export", data.Temp().Path("tables"))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("train", "--strategy", "adaptive-harmonic", "--kind", "tree",
					"--export", data.Labels().Get("export"), data.Labels().Get("db"))
			},
			Expected: test.Expects(expect.ExitCodeSuccess, nil, expect.All(
				expectContains("adaptive-harmonic.names"),
				expectContains("adaptive-harmonic.costs"),
				expectNotContains("epochs"),
			)),
		},
		{
			Description: "a rule kind cannot be saved as a model",
			Setup: func(data test.Data, helpers test.Helpers) {
				file := agar.Genuine16bit44k(data, helpers)
				data.Labels().Set("db", testutils.Database(data, []string{file},
					types.WhistleLabel{Start: 22050, End: 44100}))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("train", "--kind", "tree", "--model", data.Temp().Path("model.json"),
					data.Labels().Get("db"))
			},
			Expected: test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
	}

	testCase.Run(t)
}
