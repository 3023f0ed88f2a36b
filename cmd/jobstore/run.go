package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haldane/jobstore/internal/jobinfo"
)

var runCmd = &cobra.Command{
	Use:   "run [job-name]",
	Short: "Execute a single registered job and exit",
	Long: `Load the configuration, register its jobs, execute one of them
through the same decision tree the job service uses, and print the
resulting execution id.

Example:
  jobstore run nightly-report --config ./jobstore.yaml --priority check_preconditions`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringP("config", "c", "jobstore.yaml", "Path to configuration file")
	runCmd.Flags().String("priority", "check_preconditions", "Execution priority: ignore_preconditions, check_preconditions, or force_execution")
	runCmd.Flags().StringToString("param", nil, "Execution parameter (KEY=VALUE, repeatable)")
	runCmd.MarkFlagRequired("config")
}

func runOnce(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	priorityFlag, _ := cmd.Flags().GetString("priority")
	params, _ := cmd.Flags().GetStringToString("param")

	priority, err := parsePriority(priorityFlag)
	if err != nil {
		return err
	}

	sys, err := buildSystem(configPath)
	if err != nil {
		return err
	}
	defer sys.Close()

	id, err := sys.service.Execute(context.Background(), name, priority, params)
	if err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}

	fmt.Printf("✓ execution %s started for %s\n", id, name)

	// A RUNNING execution is dispatched in the background; wait for it
	// to finish before the repositories are closed underneath it.
	job := waitForExecution(sys, id)
	if job == nil {
		fmt.Println("(queued behind another active execution; did not run in this invocation)")
		return nil
	}

	fmt.Printf("  result: %s %s\n", job.ResultState, job.ResultMessage)
	return nil
}

func waitForExecution(sys *system, id string) *jobinfo.JobInfo {
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		job, err := sys.infos.FindByID(id)
		if err != nil || job == nil {
			return nil
		}
		if job.RunningState.IsFinished() {
			return job
		}
		if job.RunningState == jobinfo.Queued {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func parsePriority(s string) (jobinfo.ExecutionPriority, error) {
	switch strings.ToLower(s) {
	case "ignore_preconditions":
		return jobinfo.IgnorePreconditions, nil
	case "check_preconditions", "":
		return jobinfo.CheckPreconditions, nil
	case "force_execution":
		return jobinfo.ForceExecution, nil
	default:
		return "", fmt.Errorf("invalid --priority %q (expected ignore_preconditions, check_preconditions, or force_execution)", s)
	}
}
