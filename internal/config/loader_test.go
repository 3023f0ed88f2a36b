package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantError bool
		validate  func(*testing.T, *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
store:
  driver: "bbolt"
  path: "./jobstore.db"

jobs:
  - name: "nightly-report"
    timeout_period: 10m
    polling_interval: 5s
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if len(cfg.Jobs) != 1 {
					t.Errorf("expected 1 job, got %d", len(cfg.Jobs))
				}
				if cfg.Jobs[0].Name != "nightly-report" {
					t.Errorf("expected job name 'nightly-report', got %s", cfg.Jobs[0].Name)
				}
				if cfg.Store.Path != "./jobstore.db" {
					t.Errorf("expected path ./jobstore.db, got %s", cfg.Store.Path)
				}
			},
		},
		{
			name: "defaults applied to empty config",
			yaml: `
jobs:
  - name: "cleanup"
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Store.Driver != "bbolt" {
					t.Errorf("expected default driver bbolt, got %s", cfg.Store.Driver)
				}
				if cfg.Store.Path != "./jobstore.db" {
					t.Errorf("expected default path ./jobstore.db, got %s", cfg.Store.Path)
				}
				if cfg.DefinitionsStore.Driver != cfg.Store.Driver {
					t.Errorf("expected definitions_store driver to mirror store driver")
				}
				if cfg.Retention.OldJobsAfterHours != 168 {
					t.Errorf("expected default retention of 168h, got %d", cfg.Retention.OldJobsAfterHours)
				}
				if cfg.Retention.NotExecutedAfterHours != 4 {
					t.Errorf("expected default not-executed retention of 4h, got %d", cfg.Retention.NotExecutedAfterHours)
				}
				if cfg.Scheduler.QueueDrainInterval != "every 10s" {
					t.Errorf("expected default queue drain interval, got %s", cfg.Scheduler.QueueDrainInterval)
				}
				if cfg.Logging.Level != "info" {
					t.Errorf("expected default logging level info, got %s", cfg.Logging.Level)
				}
				if cfg.Jobs[0].TimeoutPeriod.String() != "10m0s" {
					t.Errorf("expected default job timeout 10m, got %s", cfg.Jobs[0].TimeoutPeriod)
				}
				if cfg.Jobs[0].PollingInterval.String() != "5s" {
					t.Errorf("expected default polling interval 5s, got %s", cfg.Jobs[0].PollingInterval)
				}
			},
		},
		{
			name: "remote and disabled job flags",
			yaml: `
jobs:
  - name: "remote-export"
    remote: true
  - name: "paused-job"
    disabled: true
`,
			wantError: false,
			validate: func(t *testing.T, cfg *Config) {
				if !cfg.Jobs[0].Remote {
					t.Error("expected remote-export to be remote")
				}
				if !cfg.Jobs[1].Disabled {
					t.Error("expected paused-job to be disabled")
				}
			},
		},
		{
			name: "invalid store driver",
			yaml: `
store:
  driver: "mongo"
jobs:
  - name: "test"
`,
			wantError: true,
		},
		{
			name: "invalid definitions_store driver",
			yaml: `
definitions_store:
  driver: "mongo"
jobs:
  - name: "test"
`,
			wantError: true,
		},
		{
			name: "duplicate job names",
			yaml: `
jobs:
  - name: "test-job"
  - name: "test-job"
`,
			wantError: true,
		},
		{
			name: "missing job name",
			yaml: `
jobs:
  - remote: true
`,
			wantError: true,
		},
		{
			name: "negative timeout period",
			yaml: `
jobs:
  - name: "test-job"
    timeout_period: -5s
`,
			wantError: true,
		},
		{
			name: "negative polling interval",
			yaml: `
jobs:
  - name: "test-job"
    polling_interval: -5s
`,
			wantError: true,
		},
		{
			name: "negative retention hours",
			yaml: `
retention:
  old_jobs_after_hours: -1
jobs:
  - name: "test-job"
`,
			wantError: true,
		},
		{
			name: "invalid scheduler interval",
			yaml: `
scheduler:
  queue_drain_interval: "not a schedule"
jobs:
  - name: "test-job"
`,
			wantError: true,
		},
		{
			name: "valid @every scheduler interval",
			yaml: `
scheduler:
  queue_drain_interval: "@every 5m"
jobs:
  - name: "test-job"
`,
			wantError: false,
		},
		{
			name: "valid every-style scheduler interval",
			yaml: `
scheduler:
  timeout_sweep_interval: "every 30s"
jobs:
  - name: "test-job"
`,
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(tmpFile, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write temp config: %v", err)
			}

			cfg, err := LoadConfig(tmpFile)

			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantError && tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
jobs:
  - name: "test"
    invalid: [unclosed
`
	if err := os.WriteFile(tmpFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateScheduleExpr(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		wantError bool
	}{
		{"valid cron 5 fields", "0 2 * * *", false},
		{"valid cron 6 fields", "0 0 2 * * *", false},
		{"valid @daily", "@daily", false},
		{"valid @hourly", "@hourly", false},
		{"valid @every 5m", "@every 5m", false},
		{"valid every 30s", "every 30s", false},
		{"valid every 10 seconds", "every 10 seconds", false},
		{"invalid shortcut", "@invalid", true},
		{"empty schedule", "", true},
		{"too few fields", "0 2 *", true},
		{"too many fields", "0 0 0 2 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateScheduleExpr(tt.schedule)
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Jobs: []JobEntry{
			{Name: "test-job"},
		},
	}

	applyDefaults(cfg)

	if cfg.Store.Driver != "bbolt" {
		t.Errorf("expected default driver bbolt, got %s", cfg.Store.Driver)
	}
	if cfg.Store.Path != "./jobstore.db" {
		t.Errorf("expected default path ./jobstore.db, got %s", cfg.Store.Path)
	}
	if cfg.Jobs[0].TimeoutPeriod.String() != "10m0s" {
		t.Errorf("expected default job timeout 10m, got %s", cfg.Jobs[0].TimeoutPeriod)
	}
	if cfg.Jobs[0].PollingInterval.String() != "5s" {
		t.Errorf("expected default polling interval 5s, got %s", cfg.Jobs[0].PollingInterval)
	}
}
