package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads and validates a jobstore configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "bbolt"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./jobstore.db"
	}

	if cfg.DefinitionsStore.Driver == "" {
		cfg.DefinitionsStore.Driver = cfg.Store.Driver
	}
	if cfg.DefinitionsStore.Path == "" {
		cfg.DefinitionsStore.Path = "./jobstore-defs.db"
	}

	if cfg.Retention.OldJobsAfterHours == 0 {
		cfg.Retention.OldJobsAfterHours = 7 * 24
	}
	if cfg.Retention.NotExecutedAfterHours == 0 {
		cfg.Retention.NotExecutedAfterHours = 4
	}

	if cfg.Scheduler.QueueDrainInterval == "" {
		cfg.Scheduler.QueueDrainInterval = "every 10s"
	}
	if cfg.Scheduler.TimeoutSweepInterval == "" {
		cfg.Scheduler.TimeoutSweepInterval = "every 30s"
	}
	if cfg.Scheduler.RemotePollInterval == "" {
		cfg.Scheduler.RemotePollInterval = "every 5s"
	}

	if cfg.Remote.RequestTimeout == 0 {
		cfg.Remote.RequestTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.TimeoutPeriod == 0 {
			job.TimeoutPeriod = 10 * time.Minute
		}
		if job.PollingInterval == 0 {
			job.PollingInterval = 5 * time.Second
		}
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	validDrivers := map[string]bool{"bbolt": true, "json": true}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'bbolt' or 'json')", cfg.Store.Driver)
	}
	if !validDrivers[cfg.DefinitionsStore.Driver] {
		return fmt.Errorf("invalid definitions_store driver: %s (must be 'bbolt' or 'json')", cfg.DefinitionsStore.Driver)
	}

	if cfg.Retention.OldJobsAfterHours < 0 {
		return fmt.Errorf("retention.old_jobs_after_hours must be non-negative")
	}
	if cfg.Retention.NotExecutedAfterHours < 0 {
		return fmt.Errorf("retention.not_executed_after_hours must be non-negative")
	}

	names := make(map[string]bool)
	for i, job := range cfg.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job at index %d is missing a name", i)
		}
		if names[job.Name] {
			return fmt.Errorf("duplicate job name: %s", job.Name)
		}
		names[job.Name] = true

		if job.TimeoutPeriod < 0 {
			return fmt.Errorf("job %s has negative timeout_period", job.Name)
		}
		if job.PollingInterval < 0 {
			return fmt.Errorf("job %s has negative polling_interval", job.Name)
		}
	}

	if _, err := ValidateScheduleExpr(cfg.Scheduler.QueueDrainInterval); err != nil {
		return fmt.Errorf("scheduler.queue_drain_interval: %w", err)
	}
	if _, err := ValidateScheduleExpr(cfg.Scheduler.TimeoutSweepInterval); err != nil {
		return fmt.Errorf("scheduler.timeout_sweep_interval: %w", err)
	}
	if _, err := ValidateScheduleExpr(cfg.Scheduler.RemotePollInterval); err != nil {
		return fmt.Errorf("scheduler.remote_poll_interval: %w", err)
	}

	return nil
}
