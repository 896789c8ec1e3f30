// Package reportdb loads persisted table snapshots into a local
// SQLite database so reporting tools can query the issue relations
// directly instead of re-parsing flat files.
//
// The database is a derived artifact: the CSV snapshots stay the
// source of truth, and every export replaces the table contents
// wholesale inside a single transaction.
package reportdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/jiratab/internal/tables"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection for the report database.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a connection to the report database at path, creating
// the file and parent directory if needed.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates one table per registry definition plus a
// foreign-key index for each child table. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	var ddl strings.Builder
	for _, def := range tables.Registry {
		ddl.WriteString(createTableSQL(def))
		if def.KeyField != tables.ForeignKey {
			fmt.Fprintf(&ddl, "CREATE INDEX IF NOT EXISTS idx_%s_issue ON %s(%s);\n",
				def.Name, def.Name, tables.ForeignKey)
		}
	}
	if _, err := db.conn.ExecContext(ctx, ddl.String()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// TableData pairs a definition with the snapshot to load.
type TableData struct {
	Def      tables.Definition
	Snapshot tables.Snapshot
}

// Import replaces the contents of every given table in one
// transaction, so the report database never exposes a half-loaded
// view of the snapshot set.
func (db *DB) Import(ctx context.Context, data []TableData) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, td := range data {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+td.Def.Name); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", td.Def.Name, err)
		}

		stmt, err := tx.PrepareContext(ctx, upsertSQL(td.Def))
		if err != nil {
			return fmt.Errorf("failed to prepare insert for %s: %w", td.Def.Name, err)
		}

		args := make([]interface{}, len(td.Def.Columns))
		for _, row := range td.Snapshot {
			for i, column := range td.Def.Columns {
				args[i] = row[column]
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("failed to insert into %s: %w", td.Def.Name, err)
			}
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("failed to close insert for %s: %w", td.Def.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// RowCount returns the number of rows in one table.
func (db *DB) RowCount(ctx context.Context, tableName string) (int, error) {
	if _, err := tables.ByName(tableName); err != nil {
		return 0, err
	}
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", tableName, err)
	}
	return count, nil
}

// createTableSQL renders the DDL for one definition. Every column is
// TEXT; the key field is the primary key.
func createTableSQL(def tables.Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", def.Name)
	for i, column := range def.Columns {
		b.WriteString("\t" + column + " TEXT")
		if column == def.KeyField {
			b.WriteString(" PRIMARY KEY")
		}
		if i < len(def.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n")
	return b.String()
}

// upsertSQL renders an insert that replaces an existing row with the
// same key.
func upsertSQL(def tables.Definition) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(def.Columns)), ", ")

	var updates []string
	for _, column := range def.Columns {
		if column == def.KeyField {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", column, column))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		def.Name,
		strings.Join(def.Columns, ", "),
		placeholders,
		def.KeyField,
		strings.Join(updates, ", "),
	)
}
