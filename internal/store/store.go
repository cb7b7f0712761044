// Package store keeps the history of evaluation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/farcloser/whistlelab/internal/evaluation"
)

var ErrNotFound = errors.New("run not found")

// Run is one stored evaluation.
type Run struct {
	ID             string
	Detector       string
	Corpus         string
	CreatedAt      time.Time
	Positives      int
	TruePositives  int
	FalsePositives int
	AverageDelay   float64
	MinDelay       float64
	MaxDelay       float64
}

// Channel is the stored score of one channel of a run.
type Channel struct {
	Channel        string
	Labels         int
	TruePositives  int
	FalsePositives int
	Detections     int
	RealTimeFactor float64
	Skipped        string
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "_busy_timeout") {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	if err = createTables(db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        detector TEXT NOT NULL,
        corpus TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        positives INTEGER NOT NULL,
        true_positives INTEGER NOT NULL,
        false_positives INTEGER NOT NULL,
        average_delay REAL NOT NULL,
        min_delay REAL NOT NULL,
        max_delay REAL NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_runs_detector ON runs(detector, created_at);
    `

	createChannelsTable := `
    CREATE TABLE IF NOT EXISTS channels (
        run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        channel TEXT NOT NULL,
        labels INTEGER NOT NULL,
        true_positives INTEGER NOT NULL,
        false_positives INTEGER NOT NULL,
        detections INTEGER NOT NULL,
        real_time_factor REAL NOT NULL,
        skipped TEXT NOT NULL DEFAULT '',
        PRIMARY KEY (run_id, position)
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	if _, err := db.Exec(createChannelsTable); err != nil {
		return fmt.Errorf("creating channels table: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a result and returns the new run id.
func (s *Store) Record(ctx context.Context, corpus string, result *evaluation.Result) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, detector, corpus, created_at, positives, true_positives, false_positives,
            average_delay, min_delay, max_delay) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Detector, corpus, time.Now().UTC(), result.Positives, result.TruePositives, result.FalsePositives,
		result.AverageDelay, result.MinDelay, result.MaxDelay,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO channels (run_id, position, channel, labels, true_positives, false_positives, detections,
            real_time_factor, skipped) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, file := range result.Files {
		skipped := ""
		if file.Err != nil {
			skipped = file.Err.Error()
		}

		if _, err = stmt.ExecContext(ctx, id, i, file.Channel, file.Labels, file.TruePositives, file.FalsePositives,
			len(file.Detections), file.RealTimeFactor, skipped); err != nil {
			return "", fmt.Errorf("inserting channel %s: %w", file.Channel, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}

	return id, nil
}

// Runs lists the most recent runs, newest first, optionally for one detector only.
func (s *Store) Runs(ctx context.Context, detector string, limit int) ([]Run, error) {
	query := `SELECT id, detector, corpus, created_at, positives, true_positives, false_positives,
        average_delay, min_delay, max_delay FROM runs`
	args := []any{}

	if detector != "" {
		query += ` WHERE detector = ?`
		args = append(args, detector)
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var run Run
		if err = rows.Scan(&run.ID, &run.Detector, &run.Corpus, &run.CreatedAt, &run.Positives, &run.TruePositives,
			&run.FalsePositives, &run.AverageDelay, &run.MinDelay, &run.MaxDelay); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Run returns one stored run.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	var run Run

	err := s.db.QueryRowContext(ctx, `SELECT id, detector, corpus, created_at, positives, true_positives,
        false_positives, average_delay, min_delay, max_delay FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.Detector, &run.Corpus, &run.CreatedAt, &run.Positives, &run.TruePositives,
		&run.FalsePositives, &run.AverageDelay, &run.MinDelay, &run.MaxDelay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	return &run, nil
}

// Channels returns the per channel scores of a run in corpus order.
func (s *Store) Channels(ctx context.Context, runID string) ([]Channel, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, labels, true_positives, false_positives, detections, real_time_factor, skipped
        FROM channels WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel

	for rows.Next() {
		var c Channel
		if err = rows.Scan(&c.Channel, &c.Labels, &c.TruePositives, &c.FalsePositives, &c.Detections,
			&c.RealTimeFactor, &c.Skipped); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}

		channels = append(channels, c)
	}

	return channels, rows.Err()
}
