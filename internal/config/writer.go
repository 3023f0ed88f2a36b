package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes a Config to a YAML file.
// It performs an atomic write by writing to a temporary file first,
// then renaming it to the target path.
func SaveConfig(cfg *Config, path string) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// AddJob registers a new job definition entry in the config file.
// If the config file doesn't exist, it creates a new one with sensible
// defaults.
func AddJob(configPath string, job JobEntry) error {
	var cfg *Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
	} else {
		cfg = NewDefaultConfig()
	}

	for _, existing := range cfg.Jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job named %q already exists", job.Name)
		}
	}

	cfg.Jobs = append(cfg.Jobs, job)

	if err := SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// RemoveJob removes a job definition entry from the config file by name.
func RemoveJob(configPath string, name string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	found := false
	newJobs := make([]JobEntry, 0, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		if job.Name == name {
			found = true
			continue
		}
		newJobs = append(newJobs, job)
	}

	if !found {
		return fmt.Errorf("job named %q not found", name)
	}

	cfg.Jobs = newJobs

	if err := SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a new Config with sensible defaults applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// GetJob retrieves a job definition entry by name from the config file.
func GetJob(configPath string, name string) (*JobEntry, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, job := range cfg.Jobs {
		if job.Name == name {
			return &job, nil
		}
	}

	return nil, fmt.Errorf("job named %q not found", name)
}
