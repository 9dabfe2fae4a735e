package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the quilt records sync tool
type Config struct {
	// Upstream LOC API settings
	LOC LOCConfig `yaml:"loc" json:"loc"`

	// Rate limiting and retry configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Sync run settings
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output and database locations
	Output OutputConfig `yaml:"output" json:"output"`

	// Read API server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LOCConfig holds Library of Congress API settings
type LOCConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Collection     string        `yaml:"collection" json:"collection"`
	ItemsPerPage   int           `yaml:"items_per_page" json:"items_per_page"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds throttling and retry configuration shared by the API
// client and the image fetcher
type RateLimitConfig struct {
	RequestDelay      time.Duration `yaml:"request_delay" json:"request_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// SyncConfig holds per-run limits and incremental-mode settings
type SyncConfig struct {
	MaxItems       int           `yaml:"max_items" json:"max_items"`
	TimeBudget     time.Duration `yaml:"time_budget" json:"time_budget"`
	StaleAfter     time.Duration `yaml:"stale_after" json:"stale_after"`
	DownloadImages bool          `yaml:"download_images" json:"download_images"`
	StartBlock     int           `yaml:"start_block" json:"start_block"`
	EndBlock       int           `yaml:"end_block" json:"end_block"`
}

// DownloadConfig holds image download settings
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	ImagesPerMinute     int           `yaml:"images_per_minute" json:"images_per_minute"`
	MaxImageSizeMB      int           `yaml:"max_image_size_mb" json:"max_image_size_mb"`
}

// OutputConfig holds filesystem layout configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	DatabasePath  string `yaml:"database_path" json:"database_path"`
}

// ServerConfig holds read API server configuration
type ServerConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// ImagesDir returns the directory downloaded images are committed to
func (o OutputConfig) ImagesDir() string {
	return filepath.Join(o.BaseDirectory, "images")
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LOC: LOCConfig{
			BaseURL:        "https://www.loc.gov",
			Collection:     "aids-memorial-quilt-records",
			ItemsPerPage:   100,
			RequestTimeout: 30 * time.Second,
			UserAgent:      "AIDS-Memorial-Quilt-Scraper/1.0 (Educational Research)",
		},
		RateLimit: RateLimitConfig{
			RequestDelay:      time.Second,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Sync: SyncConfig{
			MaxItems:       0, // unlimited
			TimeBudget:     0, // unlimited
			StaleAfter:     24 * time.Hour,
			DownloadImages: true,
			StartBlock:     1,
			EndBlock:       0,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 5,
			DownloadTimeout:     30 * time.Second,
			ImagesPerMinute:     60,
			MaxImageSizeMB:      50,
		},
		Output: OutputConfig{
			BaseDirectory: "./output",
			DatabasePath:  "./output/quilt_data.db",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("QUILTSYNC_BASE_URL"); baseURL != "" {
		c.LOC.BaseURL = baseURL
	}
	if userAgent := os.Getenv("QUILTSYNC_USER_AGENT"); userAgent != "" {
		c.LOC.UserAgent = userAgent
	}

	if delay := os.Getenv("QUILTSYNC_REQUEST_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			c.RateLimit.RequestDelay = d
		}
	}
	if stale := os.Getenv("QUILTSYNC_STALE_AFTER"); stale != "" {
		if d, err := time.ParseDuration(stale); err == nil && d > 0 {
			c.Sync.StaleAfter = d
		}
	}
	if maxItems := os.Getenv("QUILTSYNC_MAX_ITEMS"); maxItems != "" {
		var val int
		fmt.Sscanf(maxItems, "%d", &val)
		if val > 0 {
			c.Sync.MaxItems = val
		}
	}
	if images := os.Getenv("QUILTSYNC_DOWNLOAD_IMAGES"); images != "" {
		c.Sync.DownloadImages = strings.ToLower(images) == "true"
	}

	if concurrent := os.Getenv("QUILTSYNC_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if outputDir := os.Getenv("QUILTSYNC_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dbPath := os.Getenv("QUILTSYNC_DATABASE_PATH"); dbPath != "" {
		c.Output.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("QUILTSYNC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".quiltsync.yaml",
		".quiltsync.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "quiltsync", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "quiltsync", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".quiltsync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.LOC.BaseURL == "" {
		errs = append(errs, errors.New("LOC base URL is required"))
	}
	if c.LOC.Collection == "" {
		errs = append(errs, errors.New("collection name is required"))
	}
	if c.LOC.ItemsPerPage <= 0 {
		errs = append(errs, errors.New("items per page must be positive"))
	}

	if c.RateLimit.RequestDelay <= 0 {
		errs = append(errs, errors.New("request delay must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Sync.MaxItems < 0 {
		errs = append(errs, errors.New("max items cannot be negative"))
	}
	if c.Sync.StaleAfter <= 0 {
		errs = append(errs, errors.New("stale after must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if dbPath, ok := flags["database"].(string); ok && dbPath != "" {
		c.Output.DatabasePath = dbPath
	}
	if maxItems, ok := flags["max-items"].(int); ok && maxItems > 0 {
		c.Sync.MaxItems = maxItems
	}
	if budget, ok := flags["time-budget"].(time.Duration); ok && budget > 0 {
		c.Sync.TimeBudget = budget
	}
	if staleAfter, ok := flags["stale-after"].(time.Duration); ok && staleAfter > 0 {
		c.Sync.StaleAfter = staleAfter
	}
	if noImages, ok := flags["no-images"].(bool); ok && noImages {
		c.Sync.DownloadImages = false
	}
	if start, ok := flags["start-block"].(int); ok && start > 0 {
		c.Sync.StartBlock = start
	}
	if end, ok := flags["end-block"].(int); ok && end > 0 {
		c.Sync.EndBlock = end
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".quiltsync.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
