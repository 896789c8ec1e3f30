package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var (
	syncFull bool
	syncFrom string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass",
	Long: `Fetch issues from the tracker and upsert them into the six CSV
snapshots.

With no prior issues snapshot, every issue in the project is fetched.
Otherwise the fetch is incremental: issues updated, or with work
logged, on or after the snapshot's modification date minus one day.

Examples:
  jt sync --project PROJ
  jt sync --project PROJ --full
  jt sync --project PROJ --from 2026-08-01
  jt sync --project PROJ --from "last monday"`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		switch {
		case syncFull:
			err = s.SyncFull(ctx)
		case syncFrom != "":
			from, perr := parseFromDate(syncFrom)
			if perr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
				os.Exit(1)
			}
			err = s.SyncFrom(ctx, from)
		default:
			err = s.Sync(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "force a full resync, ignoring existing snapshots")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", `override the watermark (YYYY-MM-DD or natural language, e.g. "yesterday")`)
	rootCmd.AddCommand(syncCmd)
}

// parseFromDate accepts a plain date or a natural-language expression
// like "yesterday" or "last monday".
func parseFromDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("could not parse date %q", s)
	}
	return r.Time, nil
}
