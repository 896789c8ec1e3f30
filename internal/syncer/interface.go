// Package syncer executes synchronization passes: it resolves how far
// back to refetch, pulls issues from the remote tracker, and upserts
// the normalized rows into every persisted table snapshot.
package syncer

import (
	"time"

	"github.com/mschirtzinger/jiratab/internal/tables"
)

// Store is the persistence collaborator for table snapshots.
//
// Implementations must distinguish "no snapshot exists" from real
// failures by returning store.ErrNotFound; the watermark resolver and
// the per-table loop both rely on that signal to decide between full
// and incremental behavior.
type Store interface {
	// Read returns the previously persisted snapshot at path, or
	// store.ErrNotFound if none exists.
	Read(path string) (tables.Snapshot, error)

	// Write replaces the snapshot at path with the given rows,
	// encoding columns in the definition's fixed order.
	Write(path string, def tables.Definition, snapshot tables.Snapshot) error

	// ModTime returns the last-write time of the snapshot at path,
	// or store.ErrNotFound if it cannot be determined.
	ModTime(path string) (time.Time, error)
}
