package jobinfo

import (
	"errors"
	"time"
)

// ErrDuplicateActiveState is returned by Create when a JobInfo with
// the same (name, runningState) already exists — the unique-index
// violation that enforces mutual exclusion across QUEUED and RUNNING
// records for a name.
var ErrDuplicateActiveState = errors.New("jobinfo: duplicate (name, runningState)")

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("jobinfo: not found")

// Repository persists JobInfo records and enforces the (name,
// runningState) uniqueness invariant on every write that inserts or
// rewrites a runningState.
//
// Create, ActivateQueuedJob, MarkRunningAsFinished, MarkAsFinishedByID,
// MarkQueuedAsNotExecuted, and RemoveJobIfTimedOut are durable,
// acknowledged writes: their effects are visible to every subsequent
// caller before the call returns, and they never silently drop a
// unique-index violation. UpdateHostThreadInformation, AddAdditionalData,
// SetStatusMessage, and AddLogLine are best-effort: a persistence
// failure is logged by the implementation and not returned to the
// caller, since losing a log line must never abort a running job.
type Repository interface {
	Create(name, host, thread string, maxExecutionTime time.Duration, state RunningState, priority ExecutionPriority, params, additionalData map[string]string) (string, error)

	FindByID(id string) (*JobInfo, error)
	FindByNameAndRunningState(name string, state RunningState) (*JobInfo, error)
	FindByName(name string, limit int) ([]*JobInfo, error)
	FindByNameAndTimeRange(name string, start, end time.Time, result ResultCode) ([]*JobInfo, error)
	FindMostRecent(name string) (*JobInfo, error)
	FindMostRecentFinished(name string) (*JobInfo, error)
	FindMostRecentByNameAndResultState(name string, results []ResultCode) (*JobInfo, error)
	FindQueuedJobsSortedAscByCreationTime() ([]*JobInfo, error)
	FindAllMostRecent() ([]*JobInfo, error)
	DistinctJobNames() ([]string, error)

	ActivateQueuedJob(name string, now time.Time) (bool, error)
	MarkRunningAsFinished(name string, result ResultCode, message string, now time.Time) (bool, error)
	MarkAsFinishedByID(id string, result ResultCode, message string, now time.Time) (bool, error)
	MarkQueuedAsNotExecuted(name string, now time.Time) (bool, error)

	UpdateHostThreadInformation(name, host, thread string)
	AddAdditionalData(name, key, value string)
	SetStatusMessage(name, message string)
	AddLogLine(name string, line LogLine)
	AppendLogLines(name string, lines []LogLine, now time.Time) (bool, error)

	RemoveJobIfTimedOut(name string, now time.Time) (bool, error)

	Remove(id string) error
	Clear() error
	Count() (int, error)

	CleanupTimedOutJobs(now time.Time) (int, error)
	CleanupOldJobs(cutoff time.Time) (int, error)
	CleanupNotExecutedJobs(cutoff time.Time) (int, error)

	Close() error
}
