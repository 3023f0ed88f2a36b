// Package jobdef persists per-name job metadata: timeout, polling
// interval, the remote flag, and the enable/disable toggle.
package jobdef

import "time"

// Sentinel is the well-known job definition name used by higher layers
// as a repository-wide execution semaphore; it carries a zero timeout
// and polling interval and is never itself a runnable job.
const Sentinel = "JOBS"

// JobDefinition is one document per job name.
type JobDefinition struct {
	Name            string        `json:"name"`
	TimeoutPeriod   time.Duration `json:"timeoutPeriod"`
	PollingInterval time.Duration `json:"pollingInterval"`
	Remote          bool          `json:"remote"`
	Disabled        bool          `json:"disabled"`
}

// IsRemote reports whether executions of this job delegate to the
// remote executor. A nil receiver behaves as not-remote.
func (d *JobDefinition) IsRemote() bool {
	if d == nil {
		return false
	}
	return d.Remote
}

// IsDisabled reports whether execute() should refuse this job. A nil
// receiver behaves as not-disabled.
func (d *JobDefinition) IsDisabled() bool {
	if d == nil {
		return false
	}
	return d.Disabled
}
