package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/inspectwatch"
)

// analyzeCmd triggers one analysis and waits for its result.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <evidence-id>",
	Short: "Analyse one evidence photo and wait for the result",
	Long: `Trigger the AI analysis of one evidence photo and poll it until it
completes, fails or the polling budget runs out.

Authenticate with --token, or with --email and --password. The password may
also be given in the INSPECTWATCH_PASSWORD environment variable.

Exit codes:
  0 - Analysis completed
  1 - Analysis failed, timed out or could not be started

Example:
  inspectwatch analyze evi_mock_003 --email inspector@example.com --password password123
  inspectwatch analyze evi_123 --base-url https://portal.example.com/api --token $TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.String("base-url", "http://localhost:3001/api", "inspection portal API root")
	f.String("token", "", "bearer token")
	f.String("email", "", "login email")
	f.String("password", "", "login password (default $INSPECTWATCH_PASSWORD)")
	f.Duration("interval", 5*time.Second, "time between status checks")
	f.Int("max-attempts", 60, "status checks before giving up")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	baseURL, _ := f.GetString("base-url")
	token, _ := f.GetString("token")
	email, _ := f.GetString("email")
	password, _ := f.GetString("password")
	interval, _ := f.GetDuration("interval")
	maxAttempts, _ := f.GetInt("max-attempts")

	if password == "" {
		password = os.Getenv("INSPECTWATCH_PASSWORD")
	}

	opts := []inspectwatch.Option{
		inspectwatch.WithBaseURL(baseURL),
		inspectwatch.WithPollingInterval(interval),
		inspectwatch.WithMaxAttempts(maxAttempts),
		inspectwatch.WithLogger(logger),
		inspectwatch.WithStatusCallback(func(js inspectwatch.JobStatus) {
			logger.Debug("analysis status",
				"evidence_id", js.EvidenceID,
				"status", js.Status.String(),
				"attempt", js.PollingAttempts,
			)
		}),
	}
	switch {
	case token != "":
		opts = append(opts, inspectwatch.WithToken(token))
	case email != "":
		opts = append(opts, inspectwatch.WithCredentials(email, password))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := inspectwatch.Watch(ctx, args[0], opts...)
	if js.EvidenceID != "" {
		printResult(cmd.OutOrStdout(), js)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, inspectwatch.ErrAnalysisFailed):
		return fmt.Errorf("analysis of %s failed: %s", args[0], js.LastError)
	case errors.Is(err, inspectwatch.ErrTimeout):
		return fmt.Errorf("analysis of %s did not finish after %d checks", args[0], js.PollingAttempts)
	default:
		return err
	}
}

func printResult(out io.Writer, js inspectwatch.JobStatus) {
	fmt.Fprintf(out, "Evidence: %s\n", js.EvidenceID)
	fmt.Fprintf(out, "  Status:   %s\n", js.Status)
	fmt.Fprintf(out, "  Checks:   %d of %d\n", js.PollingAttempts, js.MaxAttempts)
	if js.LastError != "" {
		fmt.Fprintf(out, "  Error:    %s\n", js.LastError)
	}
	fmt.Fprintf(out, "  Issues:   %d\n", len(js.Issues))
	for _, is := range js.Issues {
		severity := is.Severity
		if severity == "" {
			severity = "unrated"
		}
		fmt.Fprintf(out, "    - [%s] %s: %s (%.0f%%)\n", severity, is.Type, is.Description, is.Confidence*100)
	}
}
