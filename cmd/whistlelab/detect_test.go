package main_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/agar/pkg/agar"

	"github.com/farcloser/whistlelab/internal/testutils"
)

func TestDetectCLI(t *testing.T) {
	testCase := testutils.Setup()

	testCase.SubTests = []*test.Case{
		{
			Description: "detect without arguments fails",
			Command:     test.Command("detect"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "detect takes a single strategy",
			Command:     test.Command("detect", "--strategy", "all", "/nonexistent/file.flac"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "detect from stdin requires raw PCM",
			Command:     test.Command("detect", "-"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "detect rejects an invalid bit depth",
			Command:     test.Command("detect", "--sample-rate", "44100", "--bit-depth", "12", "-"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "detect on raw silence reports nothing",
			Setup: func(data test.Data, _ test.Helpers) {
				// One second of 16 bit mono silence.
				data.Labels().Set("raw", data.Temp().Save(string(make([]byte, 2*44100)), "silence.raw"))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("detect", "--strategy", "peak-ratio", "--sample-rate", "44100",
					"--bit-depth", "16", "--channels", "1", "--format", "json", data.Labels().Get("raw"))
			},
			Expected: test.Expects(expect.ExitCodeSuccess, nil, expect.All(
				expectContains(`"count"`),
				expectNotContains(`"time_sec"`),
				expectContains(`"peak-ratio"`),
			)),
		},
		{
			Description: "detect rejects a channel outside the file",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("file", agar.Genuine16bit44k(data, helpers))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("detect", "--channel", "7", data.Labels().Get("file"))
			},
			Expected: test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "detect decodes a recording through ffmpeg",
			Setup: func(data test.Data, helpers test.Helpers) {
				data.Labels().Set("file", agar.Genuine16bit44k(data, helpers))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				return helpers.Command("detect", "--strategy", "background-growth", data.Labels().Get("file"))
			},
			Expected: test.Expects(expect.ExitCodeSuccess, nil, expectContains("sample_rate:")),
		},
	}

	testCase.Run(t)
}
