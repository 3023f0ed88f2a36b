package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/haldane/jobstore/internal/config"
	"github.com/haldane/jobstore/internal/jobdef"
	"github.com/haldane/jobstore/internal/jobinfo"
	"github.com/haldane/jobstore/internal/scheduler"
)

// ShellRunnable is a scheduler.Runnable that executes a single
// configured shell command, streaming its combined output into the
// execution's log lines and reporting a non-zero exit as FAILED.
type ShellRunnable struct {
	def *jobdef.JobDefinition

	command          string
	args             []string
	workdir          string
	env              map[string]string
	necessityCommand string
}

// NewShellRunnable builds a ShellRunnable from a configured job entry.
func NewShellRunnable(entry config.JobEntry) *ShellRunnable {
	return &ShellRunnable{
		def: &jobdef.JobDefinition{
			Name:            entry.Name,
			TimeoutPeriod:   entry.TimeoutPeriod,
			PollingInterval: entry.PollingInterval,
			Remote:          entry.Remote,
			Disabled:        entry.Disabled,
		},
		command:          entry.Command,
		args:             entry.Args,
		workdir:          entry.Workdir,
		env:              entry.Env,
		necessityCommand: entry.NecessityCommand,
	}
}

// JobDefinition satisfies scheduler.Runnable.
func (r *ShellRunnable) JobDefinition() *jobdef.JobDefinition {
	return r.def
}

// IsExecutionNecessary runs NecessityCommand, if configured, and
// treats a zero exit code as "necessary". With no necessity command
// configured, every CHECK_PRECONDITIONS request is necessary.
func (r *ShellRunnable) IsExecutionNecessary() bool {
	if r.necessityCommand == "" {
		return true
	}
	cmd := exec.Command("sh", "-c", r.necessityCommand)
	cmd.Dir = r.workdir
	return cmd.Run() == nil
}

// Execute runs the configured command, tailing its combined
// stdout/stderr into the execution's log lines as it produces output.
func (r *ShellRunnable) Execute(ctx context.Context, execCtx scheduler.ExecutionContext) (jobinfo.ResultCode, error) {
	if r.command == "" {
		return jobinfo.Failed, fmt.Errorf("shellrunner: job %s has no command configured", r.def.Name)
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Dir = r.workdir
	cmd.Env = buildEnv(r.env, execCtx.Parameters())

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			execCtx.AddLoggingData(scanner.Text())
		}
	}()

	execCtx.SetStatusMessage(fmt.Sprintf("running: %s %s", r.command, strings.Join(r.args, " ")))

	runErr := cmd.Run()
	pw.Close()
	<-done

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return jobinfo.Failed, fmt.Errorf("exit code %d", exitErr.ExitCode())
		}
		return jobinfo.Failed, runErr
	}
	return jobinfo.Successful, nil
}

func buildEnv(configured, params map[string]string) []string {
	env := os.Environ()
	for k, v := range configured {
		env = append(env, k+"="+v)
	}
	for k, v := range params {
		env = append(env, "JOBSTORE_PARAM_"+strings.ToUpper(k)+"="+v)
	}
	return env
}
