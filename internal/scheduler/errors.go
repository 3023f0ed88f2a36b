package scheduler

import "errors"

// Error taxonomy surfaced from Service.Execute. Callers should use
// errors.Is to distinguish these from unexpected persistence failures.
var (
	ErrJobNotRegistered         = errors.New("scheduler: job not registered")
	ErrJobAlreadyRunning        = errors.New("scheduler: job already running")
	ErrJobAlreadyQueued         = errors.New("scheduler: job already queued")
	ErrJobExecutionDisabled     = errors.New("scheduler: job execution disabled")
	ErrJobExecutionNotNecessary = errors.New("scheduler: job execution not necessary")
	ErrRemoteExecutionFailed    = errors.New("scheduler: remote execution failed")
	ErrJobPersistenceError      = errors.New("scheduler: job persistence error")
)
