package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mschirtzinger/jiratab/internal/tables"
)

func issuesDef(t *testing.T) tables.Definition {
	t.Helper()
	def, err := tables.ByName(tables.Issues)
	if err != nil {
		t.Fatalf("ByName failed: %v", err)
	}
	return def
}

func TestWriteThenRead(t *testing.T) {
	def := issuesDef(t)
	path := filepath.Join(t.TempDir(), "PROJ_"+def.FileName)

	snapshot := tables.Snapshot{
		{"issue_key": "PROJ-1", "summary": "first", "status": "Open"},
		{"issue_key": "PROJ-2", "summary": "with, comma", "description": `quoted "text"`},
	}

	csv := CSV{}
	if err := csv.Write(path, def, snapshot); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := csv.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0]["issue_key"] != "PROJ-1" || got[0]["summary"] != "first" {
		t.Errorf("unexpected first row: %v", got[0])
	}
	if got[1]["summary"] != "with, comma" {
		t.Errorf("comma not preserved through quoting: %q", got[1]["summary"])
	}
	if got[1]["description"] != `quoted "text"` {
		t.Errorf("quotes not preserved: %q", got[1]["description"])
	}
	// Columns absent from the written row come back empty.
	if got[0]["assignee"] != "" {
		t.Errorf("expected empty assignee, got %q", got[0]["assignee"])
	}
}

func TestWriteReplacesExistingFile(t *testing.T) {
	def := issuesDef(t)
	path := filepath.Join(t.TempDir(), "PROJ_"+def.FileName)
	csv := CSV{}

	big := tables.Snapshot{
		{"issue_key": "PROJ-1"},
		{"issue_key": "PROJ-2"},
		{"issue_key": "PROJ-3"},
	}
	if err := csv.Write(path, def, big); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	small := tables.Snapshot{{"issue_key": "PROJ-9"}}
	if err := csv.Write(path, def, small); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := csv.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 || got[0]["issue_key"] != "PROJ-9" {
		t.Errorf("expected snapshot replaced whole, got %v", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	csv := CSV{}
	_, err := csv.Read(filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModTime(t *testing.T) {
	def := issuesDef(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "PROJ_"+def.FileName)
	csv := CSV{}

	if _, err := csv.ModTime(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing file, got %v", err)
	}

	if err := csv.Write(path, def, tables.Snapshot{{"issue_key": "PROJ-1"}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	mod, err := csv.ModTime(path)
	if err != nil {
		t.Fatalf("ModTime failed: %v", err)
	}
	if mod.IsZero() {
		t.Error("expected non-zero modification time")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s, err=%v", dir, err)
	}
}
