package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haldane/jobstore/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a jobstore configuration file",
	Long: `Validate the syntax and semantics of a jobstore configuration file
without opening any repository or starting the job service.

Example:
  jobstore validate --config ./jobstore.yaml`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().StringP("config", "c", "jobstore.yaml", "Path to configuration file")
	validateCmd.MarkFlagRequired("config")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	logger.Info("validating configuration", "path", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", configPath,
		"jobs", len(cfg.Jobs),
		"store_driver", cfg.Store.Driver,
		"definitions_driver", cfg.DefinitionsStore.Driver)

	for i, job := range cfg.Jobs {
		logger.Debug(fmt.Sprintf("job %d", i+1),
			"name", job.Name,
			"remote", job.Remote,
			"disabled", job.Disabled,
			"timeout_period", job.TimeoutPeriod,
			"polling_interval", job.PollingInterval)
	}

	fmt.Fprintf(os.Stdout, "\n✓ Configuration is valid: %s\n", configPath)
	fmt.Fprintf(os.Stdout, "  Jobs: %d\n", len(cfg.Jobs))
	fmt.Fprintf(os.Stdout, "  Store: %s (%s)\n", cfg.Store.Driver, cfg.Store.Path)
	fmt.Fprintf(os.Stdout, "  Definitions store: %s (%s)\n", cfg.DefinitionsStore.Driver, cfg.DefinitionsStore.Path)

	return nil
}
