package main_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/whistlelab/internal/testutils"
)

func TestListCLI(t *testing.T) {
	testCase := testutils.Setup()

	testCase.SubTests = []*test.Case{
		{
			Description: "list shows every strategy",
			Command:     test.Command("list"),
			Expected: test.Expects(expect.ExitCodeSuccess, nil, expect.All(
				expectContains("peak-ratio"),
				expectContains("adaptive-harmonic"),
				expectContains("overtone-ladder"),
				expectContains("background-growth"),
				expectContains("peak-duration"),
			)),
		},
		{
			Description: "list as json",
			Command:     test.Command("list", "--format", "json"),
			Expected:    test.Expects(expect.ExitCodeSuccess, nil, expectContains(`"description"`)),
		},
		{
			Description: "unknown format fails",
			Command:     test.Command("list", "--format", "yaml-ish"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "invalid log level fails",
			Command:     test.Command("--log-level", "chatty", "list"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
	}

	testCase.Run(t)
}
