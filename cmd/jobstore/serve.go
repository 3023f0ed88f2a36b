package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job service in headless mode",
	Long: `Start the job service: queue draining, remote polling, and the
retention sweeps all run continuously until interrupted by SIGINT or
SIGTERM.

Example:
  jobstore serve --config ./jobstore.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "jobstore.yaml", "Path to configuration file")
	serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	sys, err := buildSystem(configPath)
	if err != nil {
		return err
	}
	defer sys.Close()

	logger.Info("starting jobstore job service",
		"config", configPath,
		"jobs", len(sys.cfg.Jobs),
		"store_driver", sys.cfg.Store.Driver)

	ctx := setupSignalHandler()

	if err := sys.service.Run(ctx, sys.cfg.Scheduler); err != nil && err != context.Canceled {
		logger.Error("job service stopped with error", "error", err)
		return fmt.Errorf("job service error: %w", err)
	}

	logger.Info("jobstore stopped")
	return nil
}
