package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage job definitions",
	Long: `Inspect and manage the job definitions registered with this
jobstore deployment.

Subcommands:
  list     - List all known job definitions
  enable   - Clear the disabled flag on a job definition
  disable  - Set the disabled flag on a job definition

Examples:
  jobstore job list --config jobstore.yaml
  jobstore job disable nightly-report --config jobstore.yaml`,
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all job definitions",
	RunE:  runListJobs,
}

var enableJobCmd = &cobra.Command{
	Use:   "enable [job-name]",
	Short: "Enable a job definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetDisabled(false),
}

var disableJobCmd = &cobra.Command{
	Use:   "disable [job-name]",
	Short: "Disable a job definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetDisabled(true),
}

func init() {
	jobCmd.AddCommand(listJobsCmd)
	jobCmd.AddCommand(enableJobCmd)
	jobCmd.AddCommand(disableJobCmd)

	jobCmd.PersistentFlags().StringP("config", "c", "jobstore.yaml", "Path to configuration file")
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	sys, err := buildSystem(configPath)
	if err != nil {
		return err
	}
	defer sys.Close()

	defs, err := sys.defs.FindAll()
	if err != nil {
		return fmt.Errorf("failed to list job definitions: %w", err)
	}
	if len(defs) == 0 {
		fmt.Println("No job definitions registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tREMOTE\tDISABLED\tTIMEOUT\tPOLLING")
	for _, def := range defs {
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%s\n", def.Name, def.Remote, def.Disabled, def.TimeoutPeriod, def.PollingInterval)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d\n", len(defs))
	return nil
}

func runSetDisabled(disabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		name := args[0]

		sys, err := buildSystem(configPath)
		if err != nil {
			return err
		}
		defer sys.Close()

		def, err := sys.defs.Find(name)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("no job definition named %q", name)
		}
		if err := sys.defs.SetDisabled(name, disabled); err != nil {
			return fmt.Errorf("failed to update job %q: %w", name, err)
		}

		verb := "enabled"
		if disabled {
			verb = "disabled"
		}
		fmt.Printf("✓ job %q %s\n", name, verb)
		return nil
	}
}
