package main

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haldane/jobstore/internal/dashboard"
	"github.com/haldane/jobstore/internal/jobinfo"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the job service with a terminal dashboard",
	Long: `Start the job service's background loops and attach a read-only
terminal dashboard over the same repositories.

Example:
  jobstore dashboard --config ./jobstore.yaml`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringP("config", "c", "jobstore.yaml", "Path to configuration file")
	dashboardCmd.MarkFlagRequired("config")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	// The dashboard itself should not compete with the job service for
	// the terminal with structured JSON log lines.
	logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	slog.SetDefault(logger)

	sys, err := buildSystem(configPath)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := context.WithCancel(setupSignalHandler())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sys.service.Run(gctx, sys.cfg.Scheduler); err != nil && err != context.Canceled {
			return fmt.Errorf("job service error: %w", err)
		}
		return nil
	})

	service := jobinfo.NewService(sys.infos)
	model := dashboard.New(service, logger)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, runErr := program.Run()
	if runErr != nil {
		return fmt.Errorf("dashboard error: %w", runErr)
	}

	if m, ok := finalModel.(dashboard.Model); ok && m.Quitting() {
		logger.Info("dashboard exited, shutting down job service")
	}

	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
