// Package merge upserts freshly normalized rows into a persisted
// table snapshot.
//
// The contract that makes incremental sync correct: incoming rows
// always represent the complete current state of every parent they
// reference, so a changed parent invalidates all of its previously
// stored child rows, not just the rows explicitly returned. Merging
// at the individual row level would leave orphaned stale children.
package merge

import (
	"errors"
	"sort"

	"github.com/mschirtzinger/jiratab/internal/tables"
)

// ErrNoData is returned when neither an existing snapshot nor
// incoming rows are present. An empty incremental fetch against an
// empty table is a normal outcome, so callers should log this and
// move on rather than abort.
var ErrNoData = errors.New("no data to merge")

// Merge upserts incoming rows into an existing snapshot, relating
// rows to their parent through the default issue-key foreign key.
func Merge(existing, incoming tables.Snapshot, keyField string) (tables.Snapshot, error) {
	return MergeBy(existing, incoming, keyField, tables.ForeignKey)
}

// MergeBy is Merge with an explicit foreign-key column.
//
// Semantics:
//   - Both sides present: every existing row whose foreign key appears
//     in incoming is dropped, incoming is concatenated ahead of the
//     survivors, duplicates by keyField keep the first occurrence
//     (incoming wins), and the result is sorted ascending by keyField.
//   - Only incoming: incoming becomes the snapshot.
//   - Only existing: existing is returned unchanged.
//   - Neither: ErrNoData.
func MergeBy(existing, incoming tables.Snapshot, keyField, foreignKey string) (tables.Snapshot, error) {
	switch {
	case len(incoming) == 0 && len(existing) == 0:
		return nil, ErrNoData
	case len(incoming) == 0:
		return existing, nil
	case len(existing) == 0:
		return sortByKey(incoming, keyField), nil
	}

	refreshed := make(map[string]bool, len(incoming))
	for _, row := range incoming {
		refreshed[row[foreignKey]] = true
	}

	merged := make(tables.Snapshot, 0, len(incoming)+len(existing))
	merged = append(merged, incoming...)
	for _, row := range existing {
		if !refreshed[row[foreignKey]] {
			merged = append(merged, row)
		}
	}

	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, row := range merged {
		key := row[keyField]
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, row)
	}

	return sortByKey(deduped, keyField), nil
}

func sortByKey(snapshot tables.Snapshot, keyField string) tables.Snapshot {
	sort.SliceStable(snapshot, func(i, j int) bool {
		return tables.KeyLess(snapshot[i][keyField], snapshot[j][keyField])
	})
	return snapshot
}
