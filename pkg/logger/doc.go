// Package logger provides a structured logging interface for the quilt
// records sync tool.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output
// - Optional file output alongside the console
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "quiltsync/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "/var/log/quiltsync.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	log := logger.GetLogger()
//	log.Info("sync starting")
//	log.WithField("item_id", "afc2019048_0001").Info("record stored")
//	log.WithError(err).Error("failed to download image")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "downloader").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("download completed", map[string]interface{}{
//	    "file":     "afc2019048_0001_ms0001.jpg",
//	    "size":     1024000,
//	    "duration": time.Second * 5,
//	})
//
// Tests can use NewTestLogger to capture messages in memory and assert on
// them without any console output.
package logger
