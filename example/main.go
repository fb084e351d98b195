package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/inspectwatch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start the mock portal (see mock_server.go); evi_mock_003 is pending
	baseURL, err := StartMockPortal(ctx, 3001, 8*time.Second)
	if err != nil {
		slog.Error("failed to start mock portal", "error", err)
		os.Exit(1)
	}

	// grid API: every fixture photo of the mock project from one declaration
	targets, err := inspectwatch.NewTargetGrid("Site",
		inspectwatch.WithIDTemplate("evi_mock_{{.n}}"),
		inspectwatch.WithDimensions(map[string][]string{
			"n": {"001", "002", "003", "004"},
		}),
		inspectwatch.WithGridLabels("project", "prj_mock_001"),
		inspectwatch.WithGridAutoTrigger(),
	)
	if err != nil {
		slog.Error("failed to create target grid", "error", err)
		os.Exit(1)
	}

	w, err := inspectwatch.New(
		inspectwatch.WithTargets(targets...),
		// every photo of the second project, listed on start and analysed on
		// demand from the dashboard
		inspectwatch.WithProject("prj_mock_002", inspectwatch.WithName("Lobby")),
		inspectwatch.WithBaseURL(baseURL),
		inspectwatch.WithCredentials("inspector@example.com", "password123"),
		inspectwatch.WithPollingInterval(2*time.Second),
		inspectwatch.WithMaxAttempts(15),
		inspectwatch.WithPort(8080),
		inspectwatch.WithTitle("InspectWatch Demo"),
		inspectwatch.WithStatusCallback(func(js inspectwatch.JobStatus) {
			if js.Status.Terminal() && !js.IsPolling {
				slog.Info("analysis finished",
					"evidence_id", js.EvidenceID,
					"status", js.Status.String(),
					"issues", len(js.Issues),
				)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  InspectWatch Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Targets:")
	fmt.Println("  • 4 mock photos (via Grid, pending ones analysed on start)")
	fmt.Println("  • every photo of project prj_mock_002, to analyse from the dashboard")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := w.Start(ctx); err != nil {
		slog.Error("inspectwatch error", "error", err)
		os.Exit(1)
	}
}
