package scheduler

import (
	"context"

	"github.com/haldane/jobstore/internal/jobdef"
	"github.com/haldane/jobstore/internal/jobinfo"
)

// Runnable is the external callable bound to a job name. Its
// Execute return value yields the job's ResultCode; an error return
// is recorded as FAILED with the error's message as the result message.
type Runnable interface {
	// JobDefinition returns the metadata this runnable executes under.
	JobDefinition() *jobdef.JobDefinition

	// IsExecutionNecessary is consulted by the scheduler under
	// CheckPreconditions priority; a false result yields
	// ErrJobExecutionNotNecessary without ever creating a JobInfo.
	IsExecutionNecessary() bool

	// Execute runs the job body. ctx is cancelled if the job's
	// timeout elapses; implementations that run long should check it.
	Execute(ctx context.Context, execCtx ExecutionContext) (jobinfo.ResultCode, error)
}

// ExecutionContext is the handle a Runnable uses to touch its own
// JobInfo record while it runs. Every method here is a best-effort,
// fire-and-forget write: losing a log line must never abort a job.
type ExecutionContext interface {
	AddLoggingData(line string)
	SetStatusMessage(message string)
	SaveAdditionalData(key, value string)
	Parameters() map[string]string
}

// jobExecutionContext is the concrete ExecutionContext handed to a
// Runnable during Service.runLocal.
type jobExecutionContext struct {
	repo       jobinfo.Repository
	name       string
	parameters map[string]string
}

func (c *jobExecutionContext) AddLoggingData(line string) {
	c.repo.AddLogLine(c.name, jobinfo.LogLine{Timestamp: nowFunc(), Line: line})
}

func (c *jobExecutionContext) SetStatusMessage(message string) {
	c.repo.SetStatusMessage(c.name, message)
}

func (c *jobExecutionContext) SaveAdditionalData(key, value string) {
	c.repo.AddAdditionalData(c.name, key, value)
}

func (c *jobExecutionContext) Parameters() map[string]string {
	return c.parameters
}
