package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/jiratab/internal/jira"
	"github.com/mschirtzinger/jiratab/internal/merge"
	"github.com/mschirtzinger/jiratab/internal/normalize"
	"github.com/mschirtzinger/jiratab/internal/store"
	"github.com/mschirtzinger/jiratab/internal/tables"
)

// Config carries the project-level settings for a Syncer.
type Config struct {
	// ProjectKey scopes every query and storage file. Required.
	ProjectKey string
	// DataDir is the directory holding the snapshot files.
	DataDir string
	// MaxResults caps the number of issues fetched per pass.
	// 0 means unlimited.
	MaxResults int
}

// Syncer runs synchronization passes for one project.
//
// A pass is fully sequential: one bulk search, then for each table in
// registry order a normalize → read → merge → write sequence. Tables
// commit independently, so an interrupted pass leaves earlier tables
// updated and later ones untouched.
type Syncer struct {
	client     jira.Client
	store      Store
	normalizer *normalize.Normalizer
	logger     *log.Logger
	cfg        Config
}

// New creates a Syncer.
//
// If logger is nil, a default logger writing to stderr is used.
func New(client jira.Client, st Store, cfg Config, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		client:     client,
		store:      st,
		normalizer: normalize.New(client),
		logger:     logger,
		cfg:        cfg,
	}
}

// FilePath returns the storage path for one table:
// <data_dir>/<PROJECT>_<table_file_name>.
func (s *Syncer) FilePath(def tables.Definition) string {
	return filepath.Join(s.cfg.DataDir, s.cfg.ProjectKey+"_"+def.FileName)
}

// ResolveWatermark decides the time boundary for an incremental
// fetch. ok is false when no parent-table snapshot exists, which
// signals a full resync.
//
// The boundary is the parent snapshot's last-write time shifted one
// day earlier and truncated to day granularity. The backdate
// re-includes issues whose only change (a new work log, say) did not
// bump the issue's own updated timestamp precisely enough, trading a
// little redundant refetching for completeness.
func (s *Syncer) ResolveWatermark() (time.Time, bool) {
	parent := tables.Registry[0]
	mod, err := s.store.ModTime(s.FilePath(parent))
	if err != nil {
		// Any failure to read the snapshot means no prior state.
		return time.Time{}, false
	}
	d := mod.AddDate(0, 0, -1)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()), true
}

// Sync runs one pass, resolving the watermark from the persisted
// parent snapshot. With no prior snapshot it falls back to a full
// resync.
func (s *Syncer) Sync(ctx context.Context) error {
	if err := s.checkProject(); err != nil {
		return err
	}
	watermark, ok := s.ResolveWatermark()
	if !ok {
		s.logger.Printf("No issues snapshot found; retrieving all issues for project %s", s.cfg.ProjectKey)
		return s.SyncFull(ctx)
	}
	return s.SyncFrom(ctx, watermark)
}

// SyncFull runs one pass fetching every issue in the project,
// ignoring any persisted watermark.
func (s *Syncer) SyncFull(ctx context.Context) error {
	if err := s.checkProject(); err != nil {
		return err
	}
	jql := fmt.Sprintf("project = %s", s.cfg.ProjectKey)
	return s.run(ctx, jql)
}

// SyncFrom runs one pass fetching issues updated, or with work
// logged, on or after the given date.
func (s *Syncer) SyncFrom(ctx context.Context, from time.Time) error {
	if err := s.checkProject(); err != nil {
		return err
	}
	day := from.Format("2006-01-02")
	s.logger.Printf("Retrieving issues modified on or after %s", day)
	jql := fmt.Sprintf("(project = %s) and (updatedDate >= %s or worklogDate >= %s)",
		s.cfg.ProjectKey, day, day)
	return s.run(ctx, jql)
}

// checkProject enforces the precondition that a project key exists
// before any remote call is attempted.
func (s *Syncer) checkProject() error {
	if s.cfg.ProjectKey == "" {
		return fmt.Errorf("a project key is required to sync issue data")
	}
	return nil
}

// run fetches one batch and refreshes every table from it.
//
// The same batch feeds all six tables so parents and children derive
// from one fetch. A normalize, read, or write failure on any table
// ends the pass; tables earlier in registry order are already
// committed at that point.
func (s *Syncer) run(ctx context.Context, jql string) error {
	start := time.Now()

	batch, err := s.client.Search(ctx, jql, s.cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("failed to retrieve issues: %w", err)
	}
	s.logger.Printf("%d issues retrieved", len(batch))

	for _, def := range tables.Registry {
		if err := s.refreshTable(ctx, batch, def); err != nil {
			return fmt.Errorf("table %s: %w", def.Name, err)
		}
	}

	s.logger.Printf("Sync complete for project %s in %v",
		s.cfg.ProjectKey, time.Since(start).Round(time.Millisecond))
	return nil
}

// refreshTable normalizes the batch for one table, merges it into the
// existing snapshot, and writes the result back.
//
// A merge with no data on either side is a warning, not a failure:
// the write is skipped and the pass moves to the next table.
func (s *Syncer) refreshTable(ctx context.Context, batch []jira.Issue, def tables.Definition) error {
	path := s.FilePath(def)

	incoming, err := s.normalizer.Normalize(ctx, batch, def)
	if err != nil {
		return err
	}
	s.logger.Printf("%d records converted for %s", len(incoming), def.Name)

	existing, err := s.store.Read(path)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to read existing snapshot: %w", err)
	}

	merged, err := merge.Merge(existing, incoming, def.KeyField)
	if err != nil {
		if errors.Is(err, merge.ErrNoData) {
			s.logger.Printf("WARNING: %s: no data to merge, skipping write", def.Name)
			return nil
		}
		return err
	}

	if err := s.store.Write(path, def, merged); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.Printf("%s: %d rows total (%d from this pass)", def.Name, len(merged), len(incoming))
	return nil
}
