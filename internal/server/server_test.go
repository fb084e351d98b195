package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/inspectwatch/internal/api"
	"github.com/jpalmerr/inspectwatch/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeController records actions and returns a scripted error.
type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
	st    *store.MemoryStore
}

func (f *fakeController) record(action, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, action+":"+id)
	err := f.err
	f.mu.Unlock()

	if err == nil && f.st != nil && action != "stop" {
		job, _ := f.st.Get(id)
		job.Status = "processing"
		job.IsPolling = true
		f.st.Update(job)
	}
	return err
}

func (f *fakeController) Trigger(_ context.Context, id string) error { return f.record("trigger", id) }
func (f *fakeController) Retry(_ context.Context, id string) error { return f.record("retry", id) }
func (f *fakeController) Stop(id string) error { return f.record("stop", id) }

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestServer(ctrl Controller, assets fs.FS, title string) (*Server, *store.MemoryStore) {
	st := store.NewMemoryStore()
	if fc, ok := ctrl.(*fakeController); ok {
		fc.st = st
	}
	return NewServer(st, ctrl, 0, assets, title, testLogger()), st
}

// --- JSON API ---

func TestHandleListAnalyses(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_002", Status: "completed", IssuesCount: 2})
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var jobs []store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(jobs) != 2 || jobs[0].EvidenceID != "evi_001" || jobs[1].EvidenceID != "evi_002" {
		t.Errorf("jobs = %+v, want evi_001 then evi_002", jobs)
	}
}

func TestHandleGetAnalysis(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing", PollingAttempts: 4, MaxAttempts: 60})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/evi_001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var job store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if job.PollingAttempts != 4 {
		t.Errorf("PollingAttempts = %d, want 4", job.PollingAttempts)
	}
}

func TestHandleGetAnalysis_NotFound(t *testing.T) {
	srv, _ := newTestServer(nil, nil, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/evi_404", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	var envelope api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if envelope.Error.Code != api.CodeNotFound {
		t.Errorf("error code = %q, want %q", envelope.Error.Code, api.CodeNotFound)
	}
}

func TestHandleAction(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		ctrlErr    error
		wantStatus int
		wantCode   string
		wantCall   string
	}{
		{
			name:       "trigger",
			path:       "/api/analyses/evi_001/trigger",
			wantStatus: http.StatusAccepted,
			wantCall:   "trigger:evi_001",
		},
		{
			name:       "retry",
			path:       "/api/analyses/evi_001/retry",
			wantStatus: http.StatusAccepted,
			wantCall:   "retry:evi_001",
		},
		{
			name:       "stop",
			path:       "/api/analyses/evi_001/stop",
			wantStatus: http.StatusAccepted,
			wantCall:   "stop:evi_001",
		},
		{
			name:       "already processing",
			path:       "/api/analyses/evi_001/trigger",
			ctrlErr:    &api.Error{Code: api.CodeAlreadyProcessing, Message: "busy"},
			wantStatus: http.StatusConflict,
			wantCode:   api.CodeAlreadyProcessing,
			wantCall:   "trigger:evi_001",
		},
		{
			name:       "upstream failure",
			path:       "/api/analyses/evi_001/trigger",
			ctrlErr:    &api.Error{Code: api.CodeNetwork, Message: "connection refused"},
			wantStatus: http.StatusBadGateway,
			wantCode:   api.CodeNetwork,
			wantCall:   "trigger:evi_001",
		},
		{
			name:       "plain error",
			path:       "/api/analyses/evi_001/retry",
			ctrlErr:    errors.New("tracker is closed"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   api.CodeInternal,
			wantCall:   "retry:evi_001",
		},
		{
			name:       "unknown evidence",
			path:       "/api/analyses/evi_404/trigger",
			wantStatus: http.StatusNotFound,
			wantCode:   api.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{err: tt.ctrlErr}
			srv, st := newTestServer(ctrl, nil, "")
			st.Update(store.Job{EvidenceID: "evi_001", Status: "pending", MaxAttempts: 60})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			calls := ctrl.Calls()
			if tt.wantCall == "" && len(calls) != 0 {
				t.Errorf("controller calls = %v, want none", calls)
			}
			if tt.wantCall != "" && (len(calls) != 1 || calls[0] != tt.wantCall) {
				t.Errorf("controller calls = %v, want [%s]", calls, tt.wantCall)
			}

			if tt.wantCode != "" {
				var envelope api.ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if envelope.Error.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", envelope.Error.Code, tt.wantCode)
				}
				if envelope.Error.Message == "" {
					t.Error("error message should not be empty")
				}
				return
			}

			var job store.Job
			if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if job.EvidenceID != "evi_001" {
				t.Errorf("EvidenceID = %q, want evi_001", job.EvidenceID)
			}
		})
	}
}

func TestHandleAction_TriggerReturnsUpdatedSnapshot(t *testing.T) {
	ctrl := &fakeController{}
	srv, st := newTestServer(ctrl, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "pending"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses/evi_001/trigger", nil))

	var job store.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if job.Status != "processing" || !job.IsPolling {
		t.Errorf("job = %+v, want processing and polling", job)
	}
}

func TestHandleAction_NoController(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses/evi_001/trigger", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleAction_MethodNotAllowed(t *testing.T) {
	srv, st := newTestServer(&fakeController{}, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/evi_001/trigger", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// --- SSE ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing"})
	st.Update(store.Job{EvidenceID: "evi_002", Status: "error"})

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "evi_001") {
		t.Errorf("response should contain evi_001, got: %s", body)
	}
	if !strings.Contains(body, "evi_002") {
		t.Errorf("response should contain evi_002, got: %s", body)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	st.Update(store.Job{EvidenceID: "evi_new", Status: "processing"})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	if !strings.Contains(rec.Body.String(), "evi_new") {
		t.Errorf("response should contain streamed update evi_new, got: %s", rec.Body.String())
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	srv, _ := newTestServer(nil, nil, "")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}

	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing"})

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)

			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(httptest.NewRecorder(), req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

// nonFlushWriter is a ResponseWriter without http.Flusher.
type nonFlushWriter struct {
	header http.Header
	code   int
}

func (n *nonFlushWriter) Header() http.Header {
	if n.header == nil {
		n.header = make(http.Header)
	}
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.code = statusCode
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv, _ := newTestServer(nil, nil, "")

	w := &nonFlushWriter{}
	srv.handleSSE(w, httptest.NewRequest(http.MethodGet, "/api/sse", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.code, http.StatusInternalServerError)
	}
}

func TestHandleSSE_Headers(t *testing.T) {
	srv, _ := newTestServer(nil, nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.handleSSE(rec, req)

	headers := map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
	for k, want := range headers {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
}

// parseSSEEvents extracts the JSON jobs of an SSE body.
func parseSSEEvents(body string) []store.Job {
	var jobs []store.Job
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			var job store.Job
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &job); err == nil {
				jobs = append(jobs, job)
			}
		}
	}
	return jobs
}

func TestHandleSSE_JSONFormat(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	msg := "The analysis took too long to finish."
	st.Update(store.Job{
		EvidenceID:      "evi_001",
		Name:            "North facade",
		Status:          "processing",
		PollingAttempts: 60,
		MaxAttempts:     60,
		LastError:       &msg,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	srv.handleSSE(rec, httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx))

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Name != "North facade" || e.PollingAttempts != 60 {
		t.Errorf("event = %+v", e)
	}
	if e.LastError == nil || *e.LastError != msg {
		t.Errorf("LastError = %v, want %q", e.LastError, msg)
	}
}

// TestHandleSSE_ServerShutdownIntegration checks that SSE handlers exit when
// the server context is cancelled, over a real HTTP connection that supports
// write deadlines.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing"})

	serverCtx, serverCancel := context.WithCancel(context.Background())

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleSSE(w, r.WithContext(serverCtx))
	}))
	defer ts.Close()

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Get(ts.URL)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()
		_, err = io.ReadAll(resp.Body)
		connDone <- err
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not end after server shutdown")
	}
}

// --- WebSocket ---

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJob(t *testing.T, conn *websocket.Conn) store.Job {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var job store.Job
	if err := conn.ReadJSON(&job); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return job
}

func TestHandleWS_SendsSnapshotsAndUpdates(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")
	st.Update(store.Job{EvidenceID: "evi_001", Status: "pending"})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)

	if job := readJob(t, conn); job.EvidenceID != "evi_001" || job.Status != "pending" {
		t.Errorf("initial job = %+v", job)
	}

	// wait for the handler to subscribe before publishing
	deadline := time.Now().Add(time.Second)
	for st.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	st.Update(store.Job{EvidenceID: "evi_001", Status: "processing", IsPolling: true})

	job := readJob(t, conn)
	if job.Status != "processing" || !job.IsPolling {
		t.Errorf("update = %+v, want processing and polling", job)
	}
}

func TestHandleWS_ClientCloseUnsubscribes(t *testing.T) {
	srv, st := newTestServer(nil, nil, "")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)

	deadline := time.Now().Add(time.Second)
	for st.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", st.SubscriberCount())
	}

	_ = conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for st.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after close, want 0", st.SubscriberCount())
	}
}

// --- Server Start ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	// port 0 = OS assigns available port
	srv, _ := newTestServer(nil, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(store.NewMemoryStore(), nil, port, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(store.NewMemoryStore(), nil, -1, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Dashboard ---

// mockFS implements fs.ReadFileFS for testing dashboard rendering.
type mockFS struct {
	content string
}

func (m *mockFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func TestHandleDashboard_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "custom", title: "Site 42 inspections", want: "<title>Site 42 inspections</title>"},
		{name: "default", title: "", want: "<title>InspectWatch</title>"},
		{name: "escaped", title: "<script>alert(1)</script>", want: "<title>&lt;script&gt;alert(1)&lt;/script&gt;</title>"},
		{name: "ampersand", title: "Plans & Photos", want: "<title>Plans &amp; Photos</title>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(nil, &mockFS{content: "<title>{{.Title}}</title>"}, tt.title)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv, _ := newTestServer(nil, &mockFS{content: "<title>{{.Title}}</title>"}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleDashboard_MissingIndex(t *testing.T) {
	srv, _ := newTestServer(nil, fstestEmpty{}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// fstestEmpty is a filesystem without any file.
type fstestEmpty struct{}

func (fstestEmpty) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func BenchmarkHandleSSE_SingleClient(b *testing.B) {
	st := store.NewMemoryStore()
	for i := 0; i < 10; i++ {
		st.Update(store.Job{EvidenceID: "evi_" + string(rune('A'+i)), Status: "processing"})
	}
	srv := NewServer(st, nil, 0, nil, "", testLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
		srv.handleSSE(httptest.NewRecorder(), req)
		cancel()
	}
}
