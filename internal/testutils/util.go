// Package testutils provides test infrastructure for whistlelab integration tests.
package testutils

import (
	"encoding/json"
	"path/filepath"
	"runtime"

	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/agar/pkg/agar"

	"github.com/farcloser/whistlelab/internal/corpus"
	"github.com/farcloser/whistlelab/internal/types"
)

// Setup creates a test case configured to run the whistlelab binary.
func Setup() *test.Case {
	_, thisFile, _, _ := runtime.Caller(0) //nolint:dogsled // runtime.Caller returns 4 values, only file is needed
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	binaryPath := filepath.Join(projectRoot, "bin", "whistlelab")

	return agar.Setup(binaryPath)
}

// Database saves a database document listing the given audio files, one completely labeled channel each with the
// given labels, and returns its path.
func Database(data test.Data, files []string, labels ...types.WhistleLabel) string {
	db := corpus.Database{}

	for _, file := range files {
		db.AudioFiles = append(db.AudioFiles, corpus.AudioFile{
			Path: file,
			Channels: []corpus.ChannelLabels{{
				WhistleLabels:     append([]types.WhistleLabel{}, labels...),
				CompletelyLabeled: true,
			}},
		})
	}

	content, err := json.Marshal(db)
	if err != nil {
		panic(err)
	}

	return data.Temp().Save(string(content), "whistles.json")
}
