package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/haldane/jobstore/internal/config"
	"github.com/haldane/jobstore/internal/jobdef"
	"github.com/haldane/jobstore/internal/jobinfo"
	"github.com/haldane/jobstore/internal/remote"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// nowFunc is swapped in tests to make timing deterministic.
var nowFunc = time.Now

const (
	cleanupTimedOutJobName    = "_internal_cleanup_timed_out_jobs"
	cleanupOldJobName         = "_internal_cleanup_old_jobs"
	cleanupNotExecutedJobName = "_internal_cleanup_not_executed_jobs"

	// metaJobMaxExecutionTime budgets a retention sweep's own JobInfo
	// record so CleanupTimedOutJobs' scan of RUNNING records never finds
	// and times out the sweep that is still creating it.
	metaJobMaxExecutionTime = 5 * time.Minute

	resultHashKey    = "resultHash"
	logLineOffsetKey = "logLineOffset"
)

// ArchiveProvider produces the archive stream handed to the remote
// executor's start request for a given job name.
type ArchiveProvider interface {
	CreateArchive(jobName string) (io.Reader, error)
}

// Service is the Job Service: it holds the registered runnables for
// this process, drains queued jobs, polls remote jobs, and runs the
// retention sweeps, all coordinated through the jobinfo repository's
// (name, runningState) uniqueness rather than any in-process lock.
type Service struct {
	repo     jobinfo.Repository
	defs     jobdef.Repository
	remote   *remote.Client
	archives ArchiveProvider
	logger   *slog.Logger

	oldJobsAfter     time.Duration
	notExecutedAfter time.Duration
	host             string

	mu        sync.RWMutex
	runnables map[string]Runnable
}

// NewService builds a Service. remoteClient and archives may be nil if
// the process never registers a remote job definition.
func NewService(repo jobinfo.Repository, defs jobdef.Repository, remoteClient *remote.Client, archives ArchiveProvider, retention config.Retention, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Service{
		repo:             repo,
		defs:             defs,
		remote:           remoteClient,
		archives:         archives,
		logger:           logger,
		oldJobsAfter:     time.Duration(retention.OldJobsAfterHours) * time.Hour,
		notExecutedAfter: time.Duration(retention.NotExecutedAfterHours) * time.Hour,
		host:             host,
		runnables:        make(map[string]Runnable),
	}
}

// RegisterJob binds a Runnable to its JobDefinition's name and persists
// the definition. Registering the same name twice is rejected.
func (s *Service) RegisterJob(runnable Runnable) error {
	def := runnable.JobDefinition()
	if def == nil || def.Name == "" {
		return fmt.Errorf("scheduler: job definition must have a name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runnables[def.Name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", def.Name)
	}
	if err := s.defs.Save(def); err != nil {
		return fmt.Errorf("persist job definition %q: %w", def.Name, err)
	}
	s.runnables[def.Name] = runnable
	return nil
}

func (s *Service) runnableFor(name string) (Runnable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runnables[name]
	return r, ok
}

// Execute implements the registration/enqueue/run decision tree: a
// disabled definition fails fast, an already-RUNNING job is enqueued
// (or rejected if already queued), a CHECK_PRECONDITIONS request whose
// precondition fails is rejected without ever creating a record, and
// otherwise a RUNNING record is created and the runnable is invoked.
func (s *Service) Execute(ctx context.Context, name string, priority jobinfo.ExecutionPriority, params map[string]string) (string, error) {
	runnable, ok := s.runnableFor(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotRegistered, name)
	}
	def := runnable.JobDefinition()
	if def.IsDisabled() {
		return "", fmt.Errorf("%w: %s", ErrJobExecutionDisabled, name)
	}

	running, err := s.repo.FindByNameAndRunningState(name, jobinfo.Running)
	if err != nil {
		return "", fmt.Errorf("%w: check running state: %v", ErrJobPersistenceError, err)
	}
	if running != nil {
		return s.enqueue(name, def, priority, params)
	}

	if priority == jobinfo.CheckPreconditions && !runnable.IsExecutionNecessary() {
		return "", fmt.Errorf("%w: %s", ErrJobExecutionNotNecessary, name)
	}

	id, err := s.repo.Create(name, s.host, "", def.TimeoutPeriod, jobinfo.Running, priority, params, nil)
	if err != nil {
		if errors.Is(err, jobinfo.ErrDuplicateActiveState) {
			return s.enqueue(name, def, priority, params)
		}
		return "", fmt.Errorf("%w: %v", ErrJobPersistenceError, err)
	}

	if def.IsRemote() {
		go s.startRemote(ctx, name)
	} else {
		go s.runLocal(runnable, name, params)
	}
	return id, nil
}

func (s *Service) enqueue(name string, def *jobdef.JobDefinition, priority jobinfo.ExecutionPriority, params map[string]string) (string, error) {
	queued, err := s.repo.FindByNameAndRunningState(name, jobinfo.Queued)
	if err != nil {
		return "", fmt.Errorf("%w: check queued state: %v", ErrJobPersistenceError, err)
	}
	if queued != nil {
		return "", fmt.Errorf("%w: %s", ErrJobAlreadyQueued, name)
	}

	id, err := s.repo.Create(name, s.host, "", def.TimeoutPeriod, jobinfo.Queued, priority, params, nil)
	if err != nil {
		if errors.Is(err, jobinfo.ErrDuplicateActiveState) {
			return "", fmt.Errorf("%w: %s", ErrJobAlreadyQueued, name)
		}
		return "", fmt.Errorf("%w: %v", ErrJobPersistenceError, err)
	}
	return id, nil
}

// runLocal invokes a local Runnable and records the outcome. A panic
// inside Execute is recovered and recorded as FAILED, mirroring the
// uncaught-failure path of a remote worker.
func (s *Service) runLocal(runnable Runnable, name string, params map[string]string) {
	def := runnable.JobDefinition()
	ctx := context.Background()
	if def.TimeoutPeriod > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.TimeoutPeriod)
		defer cancel()
	}
	execCtx := &jobExecutionContext{repo: s.repo, name: name, parameters: params}

	result, runErr := s.invoke(ctx, runnable, execCtx)

	if runErr != nil {
		if _, err := jobinfo.MarkRunningAsFinishedWithException(s.repo, name, runErr, nowFunc()); err != nil {
			s.logger.Error("mark finished after failure", slog.String("job", name), slog.Any("error", err))
		}
		return
	}
	if _, err := s.repo.MarkRunningAsFinished(name, result, "", nowFunc()); err != nil {
		s.logger.Error("mark finished", slog.String("job", name), slog.Any("error", err))
	}
}

func (s *Service) invoke(ctx context.Context, runnable Runnable, execCtx ExecutionContext) (code jobinfo.ResultCode, err error) {
	defer func() {
		if r := recover(); r != nil {
			code, err = jobinfo.Failed, fmt.Errorf("panic: %v", r)
		}
	}()
	return runnable.Execute(ctx, execCtx)
}

func (s *Service) startRemote(ctx context.Context, name string) {
	if s.remote == nil || s.archives == nil {
		s.finishRemoteFailure(name, fmt.Errorf("%w: no remote executor configured", ErrRemoteExecutionFailed))
		return
	}
	archive, err := s.archives.CreateArchive(name)
	if err != nil {
		s.finishRemoteFailure(name, fmt.Errorf("create archive: %w", err))
		return
	}
	statusURL, err := s.remote.Start(ctx, name, archive)
	if err != nil {
		s.finishRemoteFailure(name, fmt.Errorf("%w: %v", ErrRemoteExecutionFailed, err))
		return
	}
	s.repo.AddAdditionalData(name, resultHashKey, statusURL)
}

func (s *Service) finishRemoteFailure(name string, cause error) {
	if _, err := jobinfo.MarkRunningAsFinishedWithException(s.repo, name, cause, nowFunc()); err != nil {
		s.logger.Error("mark remote start failure", slog.String("job", name), slog.Any("error", err))
	}
}

// ExecuteQueuedJobs drains the queue: each QUEUED record whose name has
// no RUNNING record and whose preconditions pass is activated and run;
// jobs skipped because another execution claimed the name are left for
// the next sweep; jobs whose preconditions fail are marked NOT_EXECUTED.
func (s *Service) ExecuteQueuedJobs(ctx context.Context) error {
	queued, err := s.repo.FindQueuedJobsSortedAscByCreationTime()
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}
	for _, job := range queued {
		s.drainOne(ctx, job)
	}
	return nil
}

func (s *Service) drainOne(ctx context.Context, job *jobinfo.JobInfo) {
	runnable, ok := s.runnableFor(job.Name)
	if !ok {
		s.logger.Warn("queued job has no registered runnable on this process", slog.String("job", job.Name))
		return
	}
	def := runnable.JobDefinition()

	running, err := s.repo.FindByNameAndRunningState(job.Name, jobinfo.Running)
	if err != nil {
		s.logger.Error("check running state while draining", slog.String("job", job.Name), slog.Any("error", err))
		return
	}
	if running != nil {
		return
	}

	if job.ExecutionPriority == jobinfo.CheckPreconditions && !runnable.IsExecutionNecessary() {
		if _, err := s.repo.MarkQueuedAsNotExecuted(job.Name, nowFunc()); err != nil {
			s.logger.Error("mark queued not executed", slog.String("job", job.Name), slog.Any("error", err))
		}
		return
	}

	activated, err := s.repo.ActivateQueuedJob(job.Name, nowFunc())
	if err != nil {
		s.logger.Error("activate queued job", slog.String("job", job.Name), slog.Any("error", err))
		return
	}
	if !activated {
		return
	}

	if def.IsRemote() {
		go s.startRemote(ctx, job.Name)
	} else {
		go s.runLocal(runnable, job.Name, job.Parameters)
	}
}

// PollRemoteJobs consults every registered remote job currently RUNNING
// with a recorded status URL, appending newly reported log lines and
// finishing the record once the worker reports a terminal status.
func (s *Service) PollRemoteJobs(ctx context.Context) error {
	jobs, err := s.runningRemoteJobs()
	if err != nil {
		return fmt.Errorf("list running remote jobs: %w", err)
	}
	for _, job := range jobs {
		s.pollOne(ctx, job)
	}
	return nil
}

func (s *Service) runningRemoteJobs() ([]*jobinfo.JobInfo, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.runnables))
	for name, runnable := range s.runnables {
		if runnable.JobDefinition().IsRemote() {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	jobs := make([]*jobinfo.JobInfo, 0, len(names))
	for _, name := range names {
		job, err := s.repo.FindByNameAndRunningState(name, jobinfo.Running)
		if err != nil {
			return nil, fmt.Errorf("find running %s: %w", name, err)
		}
		if job != nil && job.AdditionalData[resultHashKey] != "" {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *Service) pollOne(ctx context.Context, job *jobinfo.JobInfo) {
	statusURL := job.AdditionalData[resultHashKey]
	result, err := s.remote.Poll(ctx, statusURL)
	if err != nil {
		s.logger.Warn("poll remote job failed, retrying next tick", slog.String("job", job.Name), slog.Any("error", err))
		return
	}

	offset := 0
	if raw, ok := job.AdditionalData[logLineOffsetKey]; ok {
		offset, _ = strconv.Atoi(raw)
	}
	if len(result.LogLines) > offset {
		now := nowFunc()
		newLines := make([]jobinfo.LogLine, 0, len(result.LogLines)-offset)
		for _, line := range result.LogLines[offset:] {
			newLines = append(newLines, jobinfo.LogLine{Timestamp: now, Line: line})
		}
		if _, err := s.repo.AppendLogLines(job.Name, newLines, now); err != nil {
			s.logger.Error("append polled log lines", slog.String("job", job.Name), slog.Any("error", err))
		}
		s.repo.AddAdditionalData(job.Name, logLineOffsetKey, strconv.Itoa(len(result.LogLines)))
	}

	if result.Status != remote.Finished {
		return
	}

	if _, err := s.repo.MarkRunningAsFinished(job.Name, mapRemoteResult(result.Result), result.Message, nowFunc()); err != nil {
		s.logger.Error("mark remote job finished", slog.String("job", job.Name), slog.Any("error", err))
	}
}

func mapRemoteResult(r remote.Result) jobinfo.ResultCode {
	switch r {
	case remote.Successful:
		return jobinfo.Successful
	case remote.TimedOut:
		return jobinfo.TimedOut
	default:
		return jobinfo.Failed
	}
}

// runMetaJob gives a retention sweep the same self-description as any
// other job: a JobInfo record of its own, guarded by the same (name,
// runningState) uniqueness, carrying numberOfRemovedJobs as
// additionalData once it finishes.
func (s *Service) runMetaJob(name string, body func() (int, error)) error {
	_, err := s.repo.Create(name, s.host, "", metaJobMaxExecutionTime, jobinfo.Running, jobinfo.IgnorePreconditions, nil, nil)
	if err != nil {
		if errors.Is(err, jobinfo.ErrDuplicateActiveState) {
			return nil
		}
		return fmt.Errorf("create meta-job %q: %w", name, err)
	}

	count, bodyErr := body()
	now := nowFunc()
	if bodyErr != nil {
		if _, err := jobinfo.MarkRunningAsFinishedWithException(s.repo, name, bodyErr, now); err != nil {
			s.logger.Error("mark meta-job finished after failure", slog.String("job", name), slog.Any("error", err))
		}
		return bodyErr
	}

	s.repo.AddAdditionalData(name, "numberOfRemovedJobs", strconv.Itoa(count))
	if _, err := s.repo.MarkRunningAsFinished(name, jobinfo.Successful, "", now); err != nil {
		s.logger.Error("mark meta-job finished", slog.String("job", name), slog.Any("error", err))
	}
	return nil
}

// CleanupTimedOutJobs marks every RUNNING record whose lastModificationTime
// plus maxExecutionTime has elapsed as TIMED_OUT.
func (s *Service) CleanupTimedOutJobs(ctx context.Context) error {
	return s.runMetaJob(cleanupTimedOutJobName, func() (int, error) {
		return s.repo.CleanupTimedOutJobs(nowFunc())
	})
}

// CleanupOldJobs deletes every non-RUNNING record (queued or finished)
// created before the configured retention window.
func (s *Service) CleanupOldJobs(ctx context.Context) error {
	return s.runMetaJob(cleanupOldJobName, func() (int, error) {
		return s.repo.CleanupOldJobs(nowFunc().Add(-s.oldJobsAfter))
	})
}

// CleanupNotExecutedJobs deletes NOT_EXECUTED records older than the
// configured retention window.
func (s *Service) CleanupNotExecutedJobs(ctx context.Context) error {
	return s.runMetaJob(cleanupNotExecutedJobName, func() (int, error) {
		return s.repo.CleanupNotExecutedJobs(nowFunc().Add(-s.notExecutedAfter))
	})
}

// Run starts the three background loops — queue drain, remote poll,
// and timeout sweep — paced by the given schedule expressions, and
// blocks until ctx is cancelled or a loop fails unrecoverably.
func (s *Service) Run(ctx context.Context, sched config.Scheduler) error {
	drainSchedule, err := ParseSchedule(sched.QueueDrainInterval)
	if err != nil {
		return fmt.Errorf("queue_drain_interval: %w", err)
	}
	pollSchedule, err := ParseSchedule(sched.RemotePollInterval)
	if err != nil {
		return fmt.Errorf("remote_poll_interval: %w", err)
	}
	timeoutSchedule, err := ParseSchedule(sched.TimeoutSweepInterval)
	if err != nil {
		return fmt.Errorf("timeout_sweep_interval: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runLoop(gctx, drainSchedule, s.ExecuteQueuedJobs) })
	g.Go(func() error { return s.runLoop(gctx, pollSchedule, s.PollRemoteJobs) })
	g.Go(func() error { return s.runLoop(gctx, timeoutSchedule, s.runRetentionSweeps) })
	return g.Wait()
}

// runRetentionSweeps runs the timed-out, old-job, and not-executed
// retention sweeps back to back on the timeout sweep cadence. A
// failure in one sweep does not prevent the others from running.
func (s *Service) runRetentionSweeps(ctx context.Context) error {
	var errs []error
	if err := s.CleanupTimedOutJobs(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.CleanupOldJobs(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.CleanupNotExecutedJobs(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) runLoop(ctx context.Context, schedule cron.Schedule, fn func(context.Context) error) error {
	for {
		delay := schedule.Next(nowFunc()).Sub(nowFunc())
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled loop iteration failed", slog.Any("error", err))
		}
	}
}
