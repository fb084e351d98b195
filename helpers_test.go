package inspectwatch

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jpalmerr/inspectwatch/internal/mockapi"
)

const (
	testEmail    = "inspector@example.com"
	testPassword = "password123"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockAPI serves a seeded mock inspection API and returns its base URL.
func newMockAPI(t *testing.T, processing time.Duration, fail ...string) string {
	t.Helper()

	repo := mockapi.NewMemoryRepository()
	if _, err := mockapi.Seed(context.Background(), repo); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	srv, err := mockapi.New(repo, mockapi.Config{
		ProcessingTime: processing,
		JWTSecret:      "test-secret",
		FailEvidences:  fail,
		Logger:         discardLogger(),
	})
	if err != nil {
		t.Fatalf("mockapi.New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

// mockOptions returns the options connecting to the mock API at baseURL.
func mockOptions(baseURL string) []Option {
	return []Option{
		WithBaseURL(baseURL),
		WithCredentials(testEmail, testPassword),
		WithLogger(discardLogger()),
		WithPollingInterval(100 * time.Millisecond),
	}
}

func mustTarget(t *testing.T, id string, opts ...TargetOption) Target {
	t.Helper()
	tg, err := NewTarget(id, opts...)
	if err != nil {
		t.Fatalf("NewTarget(%q) error = %v", id, err)
	}
	return tg
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

// runWatcher starts w in the background and returns a stop function that
// cancels it and waits for Start to return.
func runWatcher(t *testing.T, w *Watcher) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	waitFor(t, 5*time.Second, func() bool { return w.Jobs() != nil }, "watcher to start")

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Start() did not return after context cancellation")
		}
	}
}

func jobByID(jobs []JobStatus, id string) (JobStatus, bool) {
	for _, j := range jobs {
		if j.EvidenceID == id {
			return j, true
		}
	}
	return JobStatus{}, false
}
