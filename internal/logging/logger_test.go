package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromConfigLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(*slog.Logger)
		shouldLog bool
	}{
		{
			name:      "debug level logs debug",
			level:     "debug",
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: true,
		},
		{
			name:      "info level skips debug",
			level:     "info",
			logFunc:   func(l *slog.Logger) { l.Debug("test message") },
			shouldLog: false,
		},
		{
			name:      "info level logs info",
			level:     "info",
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
		{
			name:      "warn level logs warnings",
			level:     "warn",
			logFunc:   func(l *slog.Logger) { l.Warn("test message") },
			shouldLog: true,
		},
		{
			name:      "error level logs errors",
			level:     "error",
			logFunc:   func(l *slog.Logger) { l.Error("test message") },
			shouldLog: true,
		},
		{
			name:      "invalid level defaults to info",
			level:     "invalid",
			logFunc:   func(l *slog.Logger) { l.Info("test message") },
			shouldLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			logPath := filepath.Join(dir, "out.log")
			logger, err := NewFromConfig("json", tt.level, logPath)
			if err != nil {
				t.Fatalf("NewFromConfig() error = %v", err)
			}
			tt.logFunc(logger)

			data, _ := os.ReadFile(logPath)
			if tt.shouldLog && len(data) == 0 {
				t.Error("expected log output, got none")
			}
			if !tt.shouldLog && len(data) != 0 {
				t.Errorf("expected no log output, got: %s", data)
			}
		})
	}
}

func TestNewFromConfigOutputs(t *testing.T) {
	if _, err := NewFromConfig("json", "info", "discard"); err != nil {
		t.Fatalf("NewFromConfig(discard) error = %v", err)
	}
	if _, err := NewFromConfig("json", "info", "stderr"); err != nil {
		t.Fatalf("NewFromConfig(stderr) error = %v", err)
	}
	if _, err := NewFromConfig("text", "info", "stdout"); err != nil {
		t.Fatalf("NewFromConfig(stdout) error = %v", err)
	}
}

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		shouldRedact bool
	}{
		{
			name:         "redact API_TOKEN",
			key:          "API_TOKEN",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact api_token (lowercase)",
			key:          "api_token",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact DB_SECRET",
			key:          "DB_SECRET",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact PASSWORD",
			key:          "PASSWORD",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact USER_PASSWORD",
			key:          "USER_PASSWORD",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "redact password_hash",
			key:          "password_hash",
			value:        "secret123",
			shouldRedact: true,
		},
		{
			name:         "don't redact normal field",
			key:          "user_id",
			value:        "12345",
			shouldRedact: false,
		},
		{
			name:         "don't redact job_id",
			key:          "job_id",
			value:        "job-123",
			shouldRedact: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactSecrets})
			logger := slog.New(handler)

			logger.Info("test", tt.key, tt.value)

			output := buf.String()
			if output == "" {
				t.Fatal("expected log output")
			}

			var logEntry map[string]any
			if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
				t.Fatalf("failed to parse log output: %v", err)
			}

			actualValue, ok := logEntry[tt.key]
			if !ok {
				t.Fatalf("expected field %s in log output", tt.key)
			}

			if tt.shouldRedact {
				if actualValue != "***REDACTED***" {
					t.Errorf("expected redacted value, got: %v", actualValue)
				}
			} else {
				if actualValue != tt.value {
					t.Errorf("expected value %s, got: %v", tt.value, actualValue)
				}
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactSecrets})
	logger := slog.New(handler)

	logger.Info("test message", "key1", "value1", "key2", 42)

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if _, ok := logEntry["time"]; !ok {
		t.Error("expected 'time' field in JSON output")
	}
	if _, ok := logEntry["level"]; !ok {
		t.Error("expected 'level' field in JSON output")
	}
	if _, ok := logEntry["msg"]; !ok {
		t.Error("expected 'msg' field in JSON output")
	}

	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1=value1, got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) {
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}
