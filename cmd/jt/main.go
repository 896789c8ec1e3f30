// Command jt mirrors issue data from a remote tracker into local
// relational CSV snapshots that reporting tools can consume without
// hitting the tracker.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/jiratab/internal/jira"
	"github.com/mschirtzinger/jiratab/internal/store"
	"github.com/mschirtzinger/jiratab/internal/syncer"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jt",
	Short: "Mirror tracker issues into local relational CSV files",
	Long: `jt incrementally mirrors issues from a remote tracker project into
six related CSV files (issues plus components, labels, stakeholders,
worklogs and comments), all joined on the issue_key column.

Configuration comes from jiratab.yaml (working directory or
~/.config/jiratab/), JIRATAB_* environment variables, or flags.`,
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default jiratab.yaml)")
	rootCmd.PersistentFlags().String("project", "", "project key to sync")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for snapshot files (default ./data)")

	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("jiratab")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/jiratab")
		}
	}

	viper.SetEnvPrefix("JIRATAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("data_dir", "data")
	viper.SetDefault("max_results", 0)
	viper.SetDefault("jira.stakeholder_field", jira.DefaultStakeholderField)

	// A config file is optional; flags and environment can carry
	// everything.
	_ = viper.ReadInConfig()
}

// newLogger builds the sync logger. With log_file set, output rotates
// through lumberjack instead of going to stderr.
func newLogger() *log.Logger {
	logFile := viper.GetString("log_file")
	if logFile == "" {
		return nil // syncer falls back to its stderr default
	}
	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[sync] ", log.LstdFlags)
}

func syncerConfig() syncer.Config {
	return syncer.Config{
		ProjectKey: viper.GetString("project"),
		DataDir:    viper.GetString("data_dir"),
		MaxResults: viper.GetInt("max_results"),
	}
}

// newSyncer wires the remote client, the CSV store, and the
// orchestrator from the active configuration.
func newSyncer() (*syncer.Syncer, error) {
	client, err := jira.NewClient(jira.Config{
		Server:           viper.GetString("jira.server"),
		User:             viper.GetString("jira.user"),
		Token:            viper.GetString("jira.token"),
		StakeholderField: viper.GetInt("jira.stakeholder_field"),
	})
	if err != nil {
		return nil, fmt.Errorf("remote client: %w", err)
	}

	cfg := syncerConfig()
	if err := store.EnsureDir(cfg.DataDir); err != nil {
		return nil, err
	}

	return syncer.New(client, store.CSV{}, cfg, newLogger()), nil
}
