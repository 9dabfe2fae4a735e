package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"quiltsync/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFileOutput(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "quiltsync.log")

	logger, err := New(&config.LoggingConfig{Level: "info", File: logFile})
	if err != nil {
		t.Fatalf("New() with file output failed: %v", err)
	}

	logger.Info("test message")

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("Expected log file to be created: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"bogus", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if !tt.wantErr && level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestWithFieldIsImmutable(t *testing.T) {
	base := NewTestLogger()

	derived := base.WithField("item_id", "afc2019048_0001")
	derived.Info("derived message")
	base.Info("base message")

	// The derived logger carries the field, the base does not
	found := false
	for _, msg := range base.Messages() {
		if msg.Message == "derived message" {
			found = true
			if msg.Fields["item_id"] != "afc2019048_0001" {
				t.Error("Expected derived logger to carry item_id field")
			}
		}
		if msg.Message == "base message" {
			if _, ok := msg.Fields["item_id"]; ok {
				t.Error("Base logger should not carry fields added to a derived logger")
			}
		}
	}
	if !found {
		t.Error("Derived logger message was not recorded")
	}
}

func TestWithErrorNil(t *testing.T) {
	base := NewTestLogger()
	if got := base.WithError(nil); got == nil {
		t.Error("WithError(nil) should return a usable logger")
	}
}

func TestGetLoggerFallback(t *testing.T) {
	saved := globalLogger
	defer func() { globalLogger = saved }()

	globalLogger = nil
	if GetLogger() == nil {
		t.Error("GetLogger() should build a default logger when uninitialized")
	}
}

func TestInitialize(t *testing.T) {
	saved := globalLogger
	defer func() { globalLogger = saved }()

	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if globalLogger == nil {
		t.Error("Initialize should set the global logger")
	}

	if err := Initialize(&config.LoggingConfig{Level: "nope"}); err == nil {
		t.Error("Initialize should reject an invalid level")
	}
}
