package classify

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/farcloser/whistlelab/internal/types"
)

// Misclassification costs handed to the external tree learner: missing a whistle is ten times worse than a false
// alarm.
const (
	MissCost       = 10
	FalseAlarmCost = 1
)

// Table is a labeled feature table for offline rule learners.
type Table struct {
	Name     string
	Features int
	Examples []types.TrainingExample
}

// NewTable validates that all examples share one feature count.
func NewTable(name string, examples []types.TrainingExample) (*Table, error) {
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	size := len(examples[0].Features)
	for _, ex := range examples {
		if len(ex.Features) != size {
			return nil, ErrFeatureCount
		}
	}

	return &Table{Name: name, Features: size, Examples: examples}, nil
}

// Positives counts whistle examples.
func (t *Table) Positives() int {
	var n int

	for _, ex := range t.Examples {
		if ex.Whistle {
			n++
		}
	}

	return n
}

// WriteCSV writes a header row followed by one row per example.
func (t *Table) WriteCSV(w io.Writer) error {
	header := make([]string, 0, t.Features+1)
	for i := range t.Features {
		header = append(header, featureName(i))
	}

	return t.write(w, append(header, "whistle"))
}

// WriteData writes the C5.0 data file: the CSV rows without a header.
func (t *Table) WriteData(w io.Writer) error {
	return t.write(w, nil)
}

// WriteNames writes the C5.0 names file describing the attributes.
func (t *Table) WriteNames(w io.Writer) error {
	if _, err := fmt.Fprint(w, "whistle.\n"); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	for i := range t.Features {
		if _, err := fmt.Fprintf(w, "%s: continuous.\n", featureName(i)); err != nil {
			return fmt.Errorf("%w: %w", ErrExport, err)
		}
	}

	if _, err := fmt.Fprint(w, "whistle: YES, NO.\n"); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	return nil
}

// WriteCosts writes the C5.0 costs file.
func WriteCosts(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "YES, NO: %d\nNO, YES: %d\n", MissCost, FalseAlarmCost); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	return nil
}

func (t *Table) write(w io.Writer, header []string) error {
	out := csv.NewWriter(w)

	if header != nil {
		if err := out.Write(header); err != nil {
			return fmt.Errorf("%w: %w", ErrExport, err)
		}
	}

	row := make([]string, t.Features+1)

	for _, ex := range t.Examples {
		for i, v := range ex.Features {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}

		row[t.Features] = label(ex.Whistle)

		if err := out.Write(row); err != nil {
			return fmt.Errorf("%w: %w", ErrExport, err)
		}
	}

	out.Flush()

	if err := out.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	return nil
}

func featureName(i int) string {
	return "feature" + strconv.Itoa(i)
}

func label(whistle bool) string {
	if whistle {
		return "YES"
	}

	return "NO"
}
