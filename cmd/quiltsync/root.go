package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"quiltsync/pkg/config"
	"quiltsync/pkg/logger"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	outputDir  string
	dbPath     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quiltsync",
	Short: "Sync the AIDS Memorial Quilt Records collection from loc.gov",
	Long: `quiltsync mirrors the Library of Congress AIDS Memorial Quilt Records
collection into a local SQLite database, with images stored on disk.

A full scrape walks the whole collection; incremental updates refetch only
records whose last check has gone stale, detecting changes by content hash.
The synced data can be browsed over a local read-only HTTP API.

All requests to loc.gov are rate limited and retried with backoff, and long
runs checkpoint their progress so they can resume after interruption.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./quiltsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "base directory for database and images")
	rootCmd.PersistentFlags().StringVar(&dbPath, "database", "", "path to the SQLite database")

	rootCmd.SetVersionTemplate(`quiltsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags builds the flag map shared by every subcommand
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if dbPath != "" {
		flags["database"] = dbPath
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// loadConfig loads configuration and initializes logging from it
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	for k, v := range globalFlags() {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return cfg, nil
}
