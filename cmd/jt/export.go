package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/jiratab/internal/reportdb"
	"github.com/mschirtzinger/jiratab/internal/store"
	"github.com/mschirtzinger/jiratab/internal/syncer"
	"github.com/mschirtzinger/jiratab/internal/tables"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Load the CSV snapshots into a SQLite report database",
	Long: `Load all six CSV snapshots into <data_dir>/<PROJECT>_issues.db so
reporting tools can query the relations directly.

The CSV files remain the source of truth; every export replaces the
database contents in one transaction. Tables without a snapshot are
loaded empty.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := syncerConfig()
		if cfg.ProjectKey == "" {
			fmt.Fprintf(os.Stderr, "Error: a project key is required\n")
			os.Exit(1)
		}

		csv := store.CSV{}
		s := syncer.New(nil, csv, cfg, nil)

		var data []reportdb.TableData
		for _, def := range tables.Registry {
			snapshot, err := csv.Read(s.FilePath(def))
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "Error reading %s snapshot: %v\n", def.Name, err)
				os.Exit(1)
			}
			data = append(data, reportdb.TableData{Def: def, Snapshot: snapshot})
		}

		dbPath := filepath.Join(cfg.DataDir, cfg.ProjectKey+"_issues.db")
		db, err := reportdb.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening report database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.InitSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}
		if err := db.Import(ctx, data); err != nil {
			fmt.Fprintf(os.Stderr, "Error during import: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Exported to %s\n", dbPath)
		for _, td := range data {
			count, err := db.RowCount(ctx, td.Def.Name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s: %v\n", td.Def.Name, err)
				os.Exit(1)
			}
			fmt.Printf("  %-22s %6d rows\n", td.Def.Name, count)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
