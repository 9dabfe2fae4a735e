package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quiltsync/pkg/scraper"
)

var (
	updateStaleAfter time.Duration
	updateMaxItems   int
	updateTimeBudget time.Duration
	updateNoImages   bool
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh records whose last check has gone stale",
	Long: `Refetch records that have not been checked within the staleness window,
oldest first. Records whose content is unchanged only get their last-checked
timestamp bumped; changed records are re-stored and have missing images
downloaded.`,
	Example: `  # Refresh everything not checked in the last 24 hours (default)
  quiltsync update

  # Wider staleness window, bounded run
  quiltsync update --stale-after 168h --max-items 200`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]interface{})
		if updateStaleAfter > 0 {
			flags["stale-after"] = updateStaleAfter
		}
		if updateMaxItems > 0 {
			flags["max-items"] = updateMaxItems
		}
		if updateTimeBudget > 0 {
			flags["time-budget"] = updateTimeBudget
		}
		if updateNoImages {
			flags["no-images"] = true
		}

		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := scraper.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize scraper: %w", err)
		}
		defer s.Close()

		run, err := s.Incremental(ctx)
		if run != nil {
			printRunSummary(run)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().DurationVar(&updateStaleAfter, "stale-after", 0, "refresh records not checked within this window")
	updateCmd.Flags().IntVar(&updateMaxItems, "max-items", 0, "stop after this many items (0 = unlimited)")
	updateCmd.Flags().DurationVar(&updateTimeBudget, "time-budget", 0, "stop after this much wall-clock time (0 = unlimited)")
	updateCmd.Flags().BoolVar(&updateNoImages, "no-images", false, "skip image downloads, metadata only")
}
