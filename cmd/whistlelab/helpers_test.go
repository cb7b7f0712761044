package main_test

import (
	"fmt"
	"strings"

	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"
)

// expectContains returns a comparator verifying that stdout contains the given substring.
func expectContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if !strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("expected substring %q not found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}

// expectNotContains returns a comparator verifying that stdout does not contain the given substring.
func expectNotContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("unexpected substring %q found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}

// expectCount returns a comparator verifying that stdout contains substr exactly n times.
func expectCount(substr string, n int) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if got := strings.Count(stdout, substr); got != n {
			testing.Log(fmt.Sprintf("expected %d occurrences of %q, got %d in output:\n%s", n, substr, got, stdout))
			testing.Fail()
		}
	}
}
