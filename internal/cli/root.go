// Package cli implements the cortex terminal client.
package cli

import (
	"github.com/spf13/cobra"

	"cortex/workspace/internal/config"
	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/storage"
)

const appName = "cortex"

type rootOptions struct {
	dbPath        string
	settingsPath  string
	migrationsDir string
	logLevel      string
	verbosity     int
}

// NewRootCmd creates the cortex command tree.
func NewRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := &rootOptions{migrationsDir: cfg.MigrationsDir}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Pomodoro timer and session history for the Cortex workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultSettings, err := storage.DefaultSettingsPath(appName)
	if err != nil {
		defaultSettings = "timer.yaml"
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", cfg.DBPath, "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", defaultSettings, "timer settings file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (error|warn|info|debug)")
	cmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.logLevel == "" {
			logging.SetVerbosity(opts.verbosity)
			return nil
		}
		level, err := logging.ParseLevel(opts.logLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)
		return nil
	}

	cmd.AddCommand(
		newTimerCmd(opts),
		newSettingsCmd(opts),
		newSessionsCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newMigrateCmd(opts),
		newShellCmd(opts),
	)
	return cmd
}

func (o *rootOptions) settingsStore() *storage.YAMLSettings {
	return &storage.YAMLSettings{Path: o.settingsPath}
}
