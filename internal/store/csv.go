// Package store persists table snapshots as comma-delimited,
// header-first flat files.
//
// One file holds one table. Files are replaced whole on every write;
// there is no partial update, and a missing file is the signal that
// no prior snapshot exists.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mschirtzinger/jiratab/internal/tables"
)

// ErrNotFound reports that no snapshot file exists at the given path.
// Callers treat this as "no prior state", never as a failure.
var ErrNotFound = errors.New("snapshot not found")

// CSV reads and writes snapshot files.
type CSV struct{}

// Read loads the snapshot at path. The first record is the header;
// every following record becomes one row keyed by header column.
//
// Returns ErrNotFound if the file does not exist.
func (CSV) Read(path string) (tables.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if len(records) == 0 {
		return tables.Snapshot{}, nil
	}

	header := records[0]
	snapshot := make(tables.Snapshot, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(tables.Row, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		snapshot = append(snapshot, row)
	}
	return snapshot, nil
}

// Write replaces the snapshot at path. Columns are emitted in the
// definition's fixed order; row values missing a column are written
// empty.
func (CSV) Write(path string, def tables.Definition, snapshot tables.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(def.Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}

	record := make([]string, len(def.Columns))
	for _, row := range snapshot {
		for i, column := range def.Columns {
			record[i] = row[column]
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot %s: %w", path, err)
	}
	return nil
}

// ModTime returns the last-write time of the snapshot at path, or
// ErrNotFound if no file exists. Any other stat failure is also
// reported as ErrNotFound: the watermark resolver must treat every
// unreadable snapshot as absent rather than fail a sync pass.
func (CSV) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return info.ModTime(), nil
}

// EnsureDir creates the project data directory if needed.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return nil
}
