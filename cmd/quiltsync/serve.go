package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quiltsync/pkg/api"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/store"
)

var servePort int

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve synced records over a read-only HTTP API",
	Long: `Start a local HTTP server over the synced database.

Endpoints:
  GET /                     API info
  GET /health               liveness
  GET /stats                aggregate counts and recent sync runs
  GET /records              paged listing (page, page_size, sort_by, sort_order)
  GET /records/search       substring search (q, page, page_size)
  GET /records/{item_id}    single record`,
	Example: `  quiltsync serve
  quiltsync serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]interface{})
		if servePort > 0 {
			flags["port"] = servePort
		}

		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := store.Open(cfg.Output.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		server := api.NewServer(db, cfg.Server, logger.GetLogger())
		return server.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
}
