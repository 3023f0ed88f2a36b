// Package config loads and validates jobstore's YAML configuration.
package config

import "time"

// Config is the top-level configuration structure for jobstore.
type Config struct {
	Store            Store      `yaml:"store"`
	DefinitionsStore Store      `yaml:"definitions_store"`
	Retention        Retention  `yaml:"retention"`
	Scheduler        Scheduler  `yaml:"scheduler"`
	Remote           Remote     `yaml:"remote"`
	Logging          Logging    `yaml:"logging"`
	Jobs             []JobEntry `yaml:"jobs"`
}

// Store configures a backing store for either job executions or job
// definitions.
type Store struct {
	Driver string `yaml:"driver"` // "bbolt" or "json"
	Path   string `yaml:"path"`
}

// Retention configures the age thresholds used by the repository's
// cleanup sweeps.
type Retention struct {
	OldJobsAfterHours        int `yaml:"old_jobs_after_hours"`
	NotExecutedAfterHours    int `yaml:"not_executed_after_hours"`
}

// Scheduler configures the cadence of the Job Service's background
// loops. Each interval is one of the human-readable/cron-ish
// expressions understood by scheduler.ParseSchedule ("every 30s",
// "@every 1m", a descriptor or a cron expression); a bare duration
// such as "30s" is rejected.
type Scheduler struct {
	QueueDrainInterval   string `yaml:"queue_drain_interval"`
	TimeoutSweepInterval string `yaml:"timeout_sweep_interval"`
	RemotePollInterval   string `yaml:"remote_poll_interval"`
}

// Remote configures the HTTP client used to talk to the external worker
// that executes remote jobs.
type Remote struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Logging configures the process-wide structured logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// JobEntry seeds a JobDefinition in the definitions repository at
// startup. For local (non-remote) jobs, Command/Args/Workdir/Env
// configure the shell command jobstore executes on its behalf;
// NecessityCommand, if set, is a second command whose exit code
// decides IsExecutionNecessary() under CHECK_PRECONDITIONS priority.
type JobEntry struct {
	Name            string        `yaml:"name"`
	TimeoutPeriod   time.Duration `yaml:"timeout_period"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	Remote          bool          `yaml:"remote"`
	Disabled        bool          `yaml:"disabled"`

	Command          string            `yaml:"command"`
	Args             []string          `yaml:"args"`
	Workdir          string            `yaml:"workdir"`
	Env              map[string]string `yaml:"env"`
	NecessityCommand string            `yaml:"necessity_command"`
}
