package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger := New(cfg, "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_TextFormat(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}

	logger := New(cfg, "1.0.0")

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{
			name:     "debug level",
			input:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info level",
			input:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn level",
			input:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "warning level",
			input:    "warning",
			expected: slog.LevelWarn,
		},
		{
			name:     "error level",
			input:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "unknown defaults to info",
			input:    "unknown",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty defaults to info",
			input:    "",
			expected: slog.LevelInfo,
		},
		{
			name:     "case insensitive",
			input:    "DEBUG",
			expected: slog.LevelDebug,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	cfg := config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	logger := New(cfg, "1.0.0")
	childLogger := logger.With("component", "poller")

	if childLogger == nil {
		t.Fatal("expected non-nil child logger")
	}

	if childLogger == logger {
		t.Error("expected child logger to be different from parent")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if logger == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestNewWithWriter_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer

	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := NewWithWriter(cfg, "1.2.3", &buf)
	logger.Info("poll cycle complete", "codec_id", "studio-a")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["service"] != "codecbridge" {
		t.Errorf("expected service='codecbridge', got %v", logEntry["service"])
	}
	if logEntry["version"] != "1.2.3" {
		t.Errorf("expected version='1.2.3', got %v", logEntry["version"])
	}
	if logEntry["msg"] != "poll cycle complete" {
		t.Errorf("expected msg='poll cycle complete', got %v", logEntry["msg"])
	}
	if logEntry["codec_id"] != "studio-a" {
		t.Errorf("expected codec_id='studio-a', got %v", logEntry["codec_id"])
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)
	logger.Info("should be dropped")
	logger.Warn("should be kept")

	output := buf.String()
	if strings.Contains(output, "should be dropped") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(output, "should be kept") {
		t.Error("warn message missing at warn level")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("expected non-nil discard logger")
	}
	logger.Error("dropped")
}
