package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/haldane/jobstore/internal/config"
	"github.com/haldane/jobstore/internal/jobdef"
	"github.com/haldane/jobstore/internal/jobinfo"
)

// stubRunnable is a Runnable whose Execute result and IsExecutionNecessary
// answer are controlled by the test.
type stubRunnable struct {
	def         *jobdef.JobDefinition
	necessary   bool
	result      jobinfo.ResultCode
	err         error
	mu          sync.Mutex
	invocations int
	block       chan struct{}
}

func (s *stubRunnable) JobDefinition() *jobdef.JobDefinition { return s.def }
func (s *stubRunnable) IsExecutionNecessary() bool            { return s.necessary }

func (s *stubRunnable) Execute(ctx context.Context, execCtx ExecutionContext) (jobinfo.ResultCode, error) {
	s.mu.Lock()
	s.invocations++
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.result, s.err
}

func (s *stubRunnable) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invocations
}

func newTestService(t *testing.T) (*Service, jobinfo.Repository) {
	t.Helper()
	dir := t.TempDir()

	infoRepo, err := jobinfo.NewBoltRepository(dir + "/jobinfo.db")
	if err != nil {
		t.Fatalf("NewBoltRepository() error = %v", err)
	}
	t.Cleanup(func() { infoRepo.Close() })

	defRepo, err := jobdef.NewBoltRepository(dir + "/jobdef.db")
	if err != nil {
		t.Fatalf("jobdef.NewBoltRepository() error = %v", err)
	}
	t.Cleanup(func() { defRepo.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(infoRepo, defRepo, nil, nil, config.Retention{OldJobsAfterHours: 168, NotExecutedAfterHours: 4}, logger)
	return svc, infoRepo
}

func waitForInvocations(t *testing.T, r *stubRunnable, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.callCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("runnable did not reach %d invocations, got %d", n, r.callCount())
}

func TestScenarioDuplicateQueueing(t *testing.T) {
	svc, _ := newTestService(t)
	runnable := &stubRunnable{
		def:       &jobdef.JobDefinition{Name: "import", TimeoutPeriod: time.Minute},
		necessary: true,
		result:    jobinfo.Successful,
		block:     make(chan struct{}),
	}
	if err := svc.RegisterJob(runnable); err != nil {
		t.Fatalf("RegisterJob() error = %v", err)
	}

	idA, err := svc.Execute(context.Background(), "import", jobinfo.IgnorePreconditions, nil)
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if idA == "" {
		t.Fatal("first Execute() returned empty id")
	}

	idB, err := svc.Execute(context.Background(), "import", jobinfo.IgnorePreconditions, nil)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if idB == "" || idB == idA {
		t.Fatalf("second Execute() id = %q, want distinct non-empty id", idB)
	}

	_, err = svc.Execute(context.Background(), "import", jobinfo.IgnorePreconditions, nil)
	if !errors.Is(err, ErrJobAlreadyQueued) {
		t.Fatalf("third Execute() error = %v, want ErrJobAlreadyQueued", err)
	}

	close(runnable.block)
}

func TestExecuteRejectsDisabledJob(t *testing.T) {
	svc, _ := newTestService(t)
	runnable := &stubRunnable{def: &jobdef.JobDefinition{Name: "disabled-job", Disabled: true}}
	if err := svc.RegisterJob(runnable); err != nil {
		t.Fatalf("RegisterJob() error = %v", err)
	}

	_, err := svc.Execute(context.Background(), "disabled-job", jobinfo.IgnorePreconditions, nil)
	if !errors.Is(err, ErrJobExecutionDisabled) {
		t.Fatalf("Execute() error = %v, want ErrJobExecutionDisabled", err)
	}
}

func TestExecuteRejectsWhenPreconditionFails(t *testing.T) {
	svc, _ := newTestService(t)
	runnable := &stubRunnable{def: &jobdef.JobDefinition{Name: "skippable"}, necessary: false}
	if err := svc.RegisterJob(runnable); err != nil {
		t.Fatalf("RegisterJob() error = %v", err)
	}

	_, err := svc.Execute(context.Background(), "skippable", jobinfo.CheckPreconditions, nil)
	if !errors.Is(err, ErrJobExecutionNotNecessary) {
		t.Fatalf("Execute() error = %v, want ErrJobExecutionNotNecessary", err)
	}
	if runnable.callCount() != 0 {
		t.Errorf("runnable invoked %d times, want 0", runnable.callCount())
	}
}

func TestExecuteUnregisteredJobFails(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Execute(context.Background(), "never-registered", jobinfo.IgnorePreconditions, nil)
	if !errors.Is(err, ErrJobNotRegistered) {
		t.Fatalf("Execute() error = %v, want ErrJobNotRegistered", err)
	}
}

func TestExecuteRunsLocalJobAndMarksFinished(t *testing.T) {
	svc, repo := newTestService(t)
	runnable := &stubRunnable{
		def:       &jobdef.JobDefinition{Name: "quick-task", TimeoutPeriod: time.Minute},
		necessary: true,
		result:    jobinfo.Successful,
	}
	if err := svc.RegisterJob(runnable); err != nil {
		t.Fatalf("RegisterJob() error = %v", err)
	}

	id, err := svc.Execute(context.Background(), "quick-task", jobinfo.CheckPreconditions, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	waitForInvocations(t, runnable, 1)

	deadline := time.Now().Add(2 * time.Second)
	var job *jobinfo.JobInfo
	for time.Now().Before(deadline) {
		job, err = repo.FindByID(id)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if job.RunningState.IsFinished() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !job.RunningState.IsFinished() {
		t.Fatalf("job never finished, state = %v", job.RunningState)
	}
	if job.ResultState != jobinfo.Successful {
		t.Errorf("ResultState = %v, want Successful", job.ResultState)
	}
}

func TestExecuteQueuedJobsActivatesAndRuns(t *testing.T) {
	svc, repo := newTestService(t)
	blocker := &stubRunnable{
		def:       &jobdef.JobDefinition{Name: "import", TimeoutPeriod: time.Minute},
		necessary: true,
		result:    jobinfo.Successful,
		block:     make(chan struct{}),
	}
	if err := svc.RegisterJob(blocker); err != nil {
		t.Fatalf("RegisterJob() error = %v", err)
	}

	_, err := svc.Execute(context.Background(), "import", jobinfo.IgnorePreconditions, nil)
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	queuedID, err := svc.Execute(context.Background(), "import", jobinfo.IgnorePreconditions, nil)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}

	close(blocker.block)
	waitForInvocations(t, blocker, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		running, err := repo.FindByNameAndRunningState("import", jobinfo.Running)
		if err != nil {
			t.Fatalf("FindByNameAndRunningState() error = %v", err)
		}
		if running == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := repo.FindByID(queuedID); err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	if err := svc.ExecuteQueuedJobs(context.Background()); err != nil {
		t.Fatalf("ExecuteQueuedJobs() error = %v", err)
	}
	waitForInvocations(t, blocker, 2)
}

func TestCleanupTimedOutJobsMarksStaleRunningRecords(t *testing.T) {
	svc, repo := newTestService(t)
	id, err := repo.Create("stale-job", "host", "", 20*time.Millisecond, jobinfo.Running, jobinfo.IgnorePreconditions, nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if err := svc.CleanupTimedOutJobs(context.Background()); err != nil {
		t.Fatalf("CleanupTimedOutJobs() error = %v", err)
	}

	got, err := repo.FindByID(id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !got.RunningState.IsFinished() {
		t.Errorf("RunningState = %v, want finished", got.RunningState)
	}
	if got.ResultState != jobinfo.TimedOut {
		t.Errorf("ResultState = %v, want TimedOut", got.ResultState)
	}
}
