// Package corpus loads labeled audio databases.
//
// A database is a JSON document listing audio files, relative to the database location, with per channel whistle
// labels in samples:
//
//	{"audioFiles": [{"path": "game.wav", "channels": [{"whistleLabels": [{"start": 1, "end": 2}], "completelyLabeled": true}]}]}
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/whistlelab/internal/integration/ffmpeg"
	"github.com/farcloser/whistlelab/internal/integration/ffprobe"
	"github.com/farcloser/whistlelab/internal/pcm"
	"github.com/farcloser/whistlelab/internal/types"
)

var (
	ErrInvalidLabel = errors.New("invalid whistle label")
	ErrChannelCount = errors.New("labeled channels exceed the audio channels")
)

type Database struct {
	AudioFiles []AudioFile `json:"audioFiles"`
}

type AudioFile struct {
	Path string `json:"path"`
	// Title is informational, taken from the recording's tags when scanned.
	Title    string          `json:"title,omitempty"`
	Channels []ChannelLabels `json:"channels"`
}

type ChannelLabels struct {
	WhistleLabels     []types.WhistleLabel `json:"whistleLabels"`
	CompletelyLabeled bool                 `json:"completelyLabeled"`
}

// Decoder turns an audio file into its sample rate and per channel samples.
type Decoder interface {
	Decode(ctx context.Context, path string) (int, [][]float64, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, path string) (int, [][]float64, error)

func (f DecoderFunc) Decode(ctx context.Context, path string) (int, [][]float64, error) {
	return f(ctx, path)
}

type Options struct {
	// Decoder defaults to FFmpeg.
	Decoder Decoder
	// Workers bounds concurrent decodes (default GOMAXPROCS).
	Workers int
}

// Read parses a database document and validates its labels.
func Read(path string) (*Database, error) {
	data, err := os.ReadFile(path) //nolint:gosec // CLI tool opens user-specified databases
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var db Database
	if err = json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", fault.ErrInvalidJSON, path, err)
	}

	for _, file := range db.AudioFiles {
		for c, channel := range file.Channels {
			for _, label := range channel.WhistleLabels {
				if label.Start < 0 || label.End <= label.Start {
					return nil, fmt.Errorf("%w: %s channel %d [%d, %d)", ErrInvalidLabel, file.Path, c, label.Start, label.End)
				}
			}
		}
	}

	return &db, nil
}

// Write encodes db as an indented database document.
func Write(w io.Writer, db *Database) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(db); err != nil {
		return fmt.Errorf("encoding database: %w", err)
	}

	return nil
}

// Load reads a database and decodes every file it lists. Channels keep database order.
func Load(ctx context.Context, path string, opts Options) (*types.Corpus, error) {
	db, err := Read(path)
	if err != nil {
		return nil, err
	}

	if opts.Decoder == nil {
		opts.Decoder = FFmpeg{}
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	root := filepath.Dir(path)
	files := make([][]*types.Channel, len(db.AudioFiles))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)

	for i, file := range db.AudioFiles {
		group.Go(func() error {
			channels, err := load(ctx, opts.Decoder, root, file)
			if err != nil {
				return err
			}

			files[i] = channels

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}

	corpus := &types.Corpus{Name: filepath.Base(path)}
	for _, channels := range files {
		corpus.Channels = append(corpus.Channels, channels...)
	}

	slog.Debug("corpus.Load", "database", path, "files", len(db.AudioFiles), "channels", len(corpus.Channels))

	return corpus, nil
}

func load(ctx context.Context, decoder Decoder, root string, file AudioFile) ([]*types.Channel, error) {
	path := file.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	sampleRate, samples, err := decoder.Decode(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", file.Path, err)
	}

	if len(file.Channels) > len(samples) {
		return nil, fmt.Errorf("%w: %s has %d channels, %d labeled", ErrChannelCount, file.Path, len(samples), len(file.Channels))
	}

	out := make([]*types.Channel, 0, len(file.Channels))
	for c, labels := range file.Channels {
		out = append(out, &types.Channel{
			Name:              fmt.Sprintf("%s#%d", file.Path, c),
			Index:             c,
			SampleRate:        sampleRate,
			Samples:           samples[c],
			Labels:            labels.WhistleLabels,
			CompletelyLabeled: labels.CompletelyLabeled,
		})
	}

	return out, nil
}

// FFmpeg decodes any container ffmpeg understands, keeping its native sample rate and channel layout.
type FFmpeg struct {
	// StreamIndex selects the audio stream (0-based).
	StreamIndex int
}

func (d FFmpeg) Decode(ctx context.Context, path string) (int, [][]float64, error) {
	probe, err := ffprobe.Probe(ctx, path)
	if err != nil {
		return 0, nil, err
	}

	stream, err := probe.Audio(d.StreamIndex)
	if err != nil {
		return 0, nil, err
	}

	format, err := stream.PCMFormat(types.Depth32)
	if err != nil {
		return 0, nil, err
	}

	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer file.Close()

	var raw bytes.Buffer

	// Only the bit depth is forced; rate and layout stay native.
	if err = ffmpeg.ExtractStream(ctx, file, &raw, d.StreamIndex, &types.PCMFormat{BitDepth: types.Depth32}); err != nil {
		return 0, nil, err
	}

	samples, err := pcm.Decode(&raw, format)
	if err != nil {
		return 0, nil, err
	}

	return format.SampleRate, samples, nil
}
