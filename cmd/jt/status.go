package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/jiratab/internal/store"
	"github.com/mschirtzinger/jiratab/internal/syncer"
	"github.com/mschirtzinger/jiratab/internal/tables"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show snapshot state and the next watermark",
	Long: `Display each table's snapshot file, row count, and modification
time, plus the watermark the next incremental sync would use.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := syncerConfig()
		if cfg.ProjectKey == "" {
			fmt.Fprintf(os.Stderr, "Error: a project key is required\n")
			os.Exit(1)
		}

		csv := store.CSV{}
		// The remote client is never touched here; path and watermark
		// logic live on the syncer.
		s := syncer.New(nil, csv, cfg, nil)

		fmt.Printf("Project %s (data in %s)\n\n", cfg.ProjectKey, cfg.DataDir)

		for _, def := range tables.Registry {
			path := s.FilePath(def)
			snapshot, err := csv.Read(path)
			if errors.Is(err, store.ErrNotFound) {
				fmt.Printf("  %-22s (no snapshot)\n", def.Name)
				continue
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
				os.Exit(1)
			}
			mod, _ := csv.ModTime(path)
			fmt.Printf("  %-22s %6d rows  modified %s\n",
				def.Name, len(snapshot), mod.Format("2006-01-02 15:04"))
		}

		fmt.Println()
		if watermark, ok := s.ResolveWatermark(); ok {
			fmt.Printf("Next incremental sync fetches changes since %s\n",
				watermark.Format("2006-01-02"))
		} else {
			fmt.Println("No issues snapshot; next sync will be a full resync")
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
