//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhowden/tag"
	"github.com/urfave/cli/v3"

	"github.com/farcloser/whistlelab/internal/corpus"
	"github.com/farcloser/whistlelab/internal/integration/ffprobe"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	errNotDirectory = errors.New("not a directory")
	errNoAudioFiles = errors.New("no audio files found")
)

//nolint:gochecknoglobals
var audioExtensions = []string{".wav", ".flac", ".ogg", ".m4a", ".mp3"}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Probe a folder of recordings and write a database skeleton to label",
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Database file; labels already present in it are kept",
				Value:   "whistles.json",
			},
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based)",
				Value: 0,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent probes",
				Value:   runtime.NumCPU(),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := expectArgs(cmd, 1, "<folder>"); err != nil {
				return err
			}

			return runScan(ctx, cmd.Args().First(), cmd.String("output"), cmd.Int("stream"), max(cmd.Int("workers"), 1))
		},
	}
}

func runScan(ctx context.Context, folder, outputPath string, streamIndex, workers int) error {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%q: %w", folder, errNotDirectory)
	}

	files, err := collectAudioFiles(folder)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%q: %w", folder, errNoAudioFiles)
	}

	existing := map[string]corpus.AudioFile{}

	if _, statErr := os.Stat(outputPath); statErr == nil {
		db, err := corpus.Read(outputPath)
		if err != nil {
			return err
		}

		for _, file := range db.AudioFiles {
			existing[file.Path] = file
		}
	}

	root, err := filepath.Abs(filepath.Dir(outputPath))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Found %d files to probe (%d workers)\n", len(files), workers)

	startTime := time.Now()
	entries := make([]corpus.AudioFile, len(files))
	failures := make([]error, len(files))

	var progress atomic.Int64

	sem := make(chan struct{}, workers)

	var waitGroup sync.WaitGroup

	for idx, filePath := range files {
		waitGroup.Add(1)

		go func(idx int, filePath string) {
			defer waitGroup.Done()

			sem <- struct{}{}

			defer func() { <-sem }()

			entries[idx], failures[idx] = scanFile(ctx, root, filePath, streamIndex, existing)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(files), filePath)
		}(idx, filePath)
	}

	waitGroup.Wait()

	db := &corpus.Database{}
	failed := 0

	for idx := range entries {
		if failures[idx] != nil {
			failed++

			slog.Warn("skipping file", "file", files[idx], "error", failures[idx])

			continue
		}

		db.AudioFiles = append(db.AudioFiles, entries[idx])
	}

	out, err := os.Create(outputPath) //nolint:gosec // CLI tool writes user-specified paths
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	if err = corpus.Write(out, db); err != nil {
		return err
	}

	elapsed := time.Since(startTime)

	fmt.Fprintf(os.Stderr, "\nDone: %d files in %s (%d failed, %d previously listed)\n",
		len(files), elapsed.Truncate(time.Millisecond), failed, len(existing))
	fmt.Fprintf(os.Stderr, "Database written to %s\n", outputPath)

	return out.Close()
}

// scanFile probes one file and returns its database entry, keeping labels from a previous scan.
func scanFile(
	ctx context.Context,
	root, filePath string,
	streamIndex int,
	existing map[string]corpus.AudioFile,
) (corpus.AudioFile, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return corpus.AudioFile{}, err
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = abs
	}

	probe, err := ffprobe.Probe(ctx, filePath)
	if err != nil {
		return corpus.AudioFile{}, fmt.Errorf("probe failed: %w", err)
	}

	stream, err := probe.Audio(streamIndex)
	if err != nil {
		return corpus.AudioFile{}, err
	}

	entry := corpus.AudioFile{
		Path:     rel,
		Title:    readTitle(filePath),
		Channels: make([]corpus.ChannelLabels, max(stream.Channels, 0)),
	}

	if previous, ok := existing[rel]; ok {
		copy(entry.Channels, previous.Channels)

		if previous.Title != "" {
			entry.Title = previous.Title
		}
	}

	for i := range entry.Channels {
		if entry.Channels[i].WhistleLabels == nil {
			entry.Channels[i].WhistleLabels = []types.WhistleLabel{}
		}
	}

	return entry, nil
}

// readTitle returns the title tag of a recording, or an empty string when it has none.
func readTitle(filePath string) string {
	file, err := os.Open(filePath) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return ""
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		if !errors.Is(err, tag.ErrNoTagsFound) {
			slog.Debug("reading tags", "file", filePath, "error", err)
		}

		return ""
	}

	return strings.TrimSpace(meta.Title())
}

func collectAudioFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)

	return files, nil
}
