package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/inspectwatch/internal/mockapi"
)

// StartMockPortal runs the mock inspection portal on port until ctx is
// cancelled. Analyses take processing to finish; ids in fail end in error.
//
// It returns the API base URL to point the watcher at.
func StartMockPortal(ctx context.Context, port int, processing time.Duration, fail ...string) (string, error) {
	repo := mockapi.NewMemoryRepository()
	if _, err := mockapi.Seed(ctx, repo); err != nil {
		return "", fmt.Errorf("failed to seed mock portal: %w", err)
	}

	srv, err := mockapi.New(repo, mockapi.Config{
		Port:           port,
		ProcessingTime: processing,
		JWTSecret:      "example-secret",
		FailEvidences:  fail,
		Logger:         slog.Default().With("component", "mock_portal"),
	})
	if err != nil {
		return "", err
	}
	if err := srv.Start(ctx); err != nil {
		return "", err
	}

	go func() {
		<-ctx.Done()
		_ = repo.Close()
	}()

	return fmt.Sprintf("http://localhost:%d/api", port), nil
}
