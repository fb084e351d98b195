package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/inspectwatch/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an InspectWatch configuration file without starting the server.

This command parses the YAML, expands environment variables, validates all
fields and expands grids into targets. Project evidences are listed only when
the watcher starts. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  inspectwatch validate -c config.yaml
  inspectwatch validate --config /etc/inspectwatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// expanding grids catches template keys that are missing from a dimension
	targets, err := config.BuildTargets(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Targets)
	fromGrids := len(targets) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Base URL:      %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Max attempts:  %d\n", cfg.MaxAttempts)
	fmt.Fprintf(out, "  Targets:       %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(targets))
	if len(cfg.Projects) > 0 {
		fmt.Fprintf(out, "  Projects:      %d (evidences listed at start)\n", len(cfg.Projects))
	}

	return nil
}
