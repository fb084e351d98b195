// Package main is the entry point for the inspectwatch CLI.
//
// InspectWatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	inspectwatch serve -c config.yaml    # Start the dashboard
//	inspectwatch analyze evi_123         # Analyse one photo and wait
//	inspectwatch mock                    # Run the mock inspection portal
//	inspectwatch validate -c config.yaml # Validate configuration
//	inspectwatch version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "inspectwatch",
	Short: "Track AI analysis of construction inspection photos",
	Long: `InspectWatch tracks the AI analysis of construction-site evidence photos.

It triggers analyses on the inspection portal, polls them until they
finish and shows their status and detected issues in a live web UI.

Quick start:
  1. Run the mock portal: inspectwatch mock
  2. Create a config file (inspectwatch.yaml)
  3. Run: inspectwatch serve -c inspectwatch.yaml
  4. Open http://localhost:8080 in your browser

Example config:
  base_url: http://localhost:3001/api
  email: inspector@example.com
  password: ${PORTAL_PASSWORD}
  targets:
    - evidence_id: evi_mock_003
      auto_trigger: true`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this inspectwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inspectwatch %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger on stderr at the level given by --log-level.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := parseLevel(raw)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
