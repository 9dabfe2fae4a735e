package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quiltsync/pkg/store"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics from the local database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(make(map[string]interface{}))
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Output.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}

		fmt.Printf("Collection statistics (%s)\n", cfg.Output.DatabasePath)
		fmt.Printf("  Total records:          %d\n", stats.TotalRecords)
		fmt.Printf("  Records with images:    %d\n", stats.RecordsWithImages)
		fmt.Printf("  Records missing images: %d\n", stats.RecordsMissingImages)
		fmt.Printf("  Total image URLs:       %d\n", stats.TotalImageURLs)
		fmt.Printf("  Unique blocks:          %d\n", stats.UniqueBlocks)
		if stats.OldestCheck != nil {
			fmt.Printf("  Oldest check:           %s\n", stats.OldestCheck.Format("2006-01-02 15:04:05"))
		}
		if stats.NewestUpdate != nil {
			fmt.Printf("  Newest update:          %s\n", stats.NewestUpdate.Format("2006-01-02 15:04:05"))
		}

		runs, err := db.LastRuns(cmd.Context(), 5)
		if err != nil {
			return fmt.Errorf("failed to load sync runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent sync runs:")
			for _, run := range runs {
				fmt.Printf("  %s  %-12s %-10s processed=%d new=%d changed=%d failed=%d\n",
					run.StartedAt.Format("2006-01-02 15:04"),
					run.Mode, run.Status,
					run.ItemsProcessed, run.ItemsNew, run.ItemsChanged, run.ItemsFailed)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
