package main

import (
	"fmt"
	"log/slog"

	"github.com/haldane/jobstore/internal/archive"
	"github.com/haldane/jobstore/internal/config"
	"github.com/haldane/jobstore/internal/jobdef"
	"github.com/haldane/jobstore/internal/jobinfo"
	"github.com/haldane/jobstore/internal/logging"
	"github.com/haldane/jobstore/internal/remote"
	"github.com/haldane/jobstore/internal/scheduler"
)

// system bundles the repositories and scheduler service built from a
// loaded configuration, plus the close hooks main needs to run on
// shutdown.
type system struct {
	cfg     *config.Config
	infos   jobinfo.Repository
	defs    jobdef.Repository
	service *scheduler.Service
}

func (s *system) Close() {
	if err := s.infos.Close(); err != nil {
		logger.Error("failed to close job info repository", "error", err)
	}
	if err := s.defs.Close(); err != nil {
		logger.Error("failed to close job definition repository", "error", err)
	}
}

// buildSystem loads configPath, opens both repositories, wires an
// optional remote client/archive provider, constructs the scheduler
// service, and registers a ShellRunnable for every configured job
// (remote ones included, so the service can execute and poll them).
// It does not start the scheduler's background loops.
func buildSystem(configPath string) (*system, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		runLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = runLogger
		slog.SetDefault(runLogger)
	}

	infos, err := jobinfo.NewRepository(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job info repository: %w", err)
	}

	defs, err := jobdef.NewRepository(cfg.DefinitionsStore.Driver, cfg.DefinitionsStore.Path)
	if err != nil {
		_ = infos.Close()
		return nil, fmt.Errorf("failed to open job definition repository: %w", err)
	}

	var remoteClient *remote.Client
	var archives scheduler.ArchiveProvider
	if cfg.Remote.BaseURL != "" {
		remoteClient = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.RequestTimeout)
		archives = archive.NewDirectoryProvider(".")
	}

	service := scheduler.NewService(infos, defs, remoteClient, archives, cfg.Retention, logger)

	for _, entry := range cfg.Jobs {
		runnable := NewShellRunnable(entry)
		if err := service.RegisterJob(runnable); err != nil {
			_ = infos.Close()
			_ = defs.Close()
			return nil, fmt.Errorf("failed to register job %s: %w", entry.Name, err)
		}
	}

	return &system{cfg: cfg, infos: infos, defs: defs, service: service}, nil
}
