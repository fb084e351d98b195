package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		opts    []ClientOption
		wantErr bool
	}{
		{name: "http", baseURL: "http://localhost:3001/api"},
		{name: "https with trailing slash", baseURL: "https://portal.example.com/api/"},
		{name: "missing scheme", baseURL: "localhost:3001/api", wantErr: true},
		{name: "ftp scheme", baseURL: "ftp://example.com", wantErr: true},
		{name: "zero timeout", baseURL: "http://localhost", opts: []ClientOption{WithTimeout(0)}, wantErr: true},
		{name: "nil http client", baseURL: "http://localhost", opts: []ClientOption{WithHTTPClient(nil)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.baseURL, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_BaseURLTrimsSlash(t *testing.T) {
	client, err := NewClient("http://localhost:3001/api/")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if got := client.BaseURL(); got != "http://localhost:3001/api" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://localhost:3001/api")
	}
}

func TestClient_AnalyzeEvidence(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusAccepted, AnalyzeResponse{Status: TriggerProcessing})
	}, WithToken("secret"))

	resp, err := client.AnalyzeEvidence(context.Background(), "evi_001")
	if err != nil {
		t.Fatalf("AnalyzeEvidence() error = %v", err)
	}
	if !resp.Accepted() {
		t.Errorf("Accepted() = false for status %q", resp.Status)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/api/evidences/evi_001/analyze" {
		t.Errorf("path = %s, want /api/evidences/evi_001/analyze", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
}

func TestClient_GetEvidence(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/evidences/evi_002" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           "evi_002",
			"project_id":   "prj_001",
			"file_url":     "https://example.com/a.jpg",
			"status":       "completed",
			"issues_count": 2,
			"issues": []map[string]any{
				{"type": "structural_crack", "description": "crack", "confidence": 0.92, "severity": "high"},
				{"type": "water_damage", "description": "stain", "confidence": 0.7},
			},
		})
	})

	detail, err := client.GetEvidence(context.Background(), "evi_002")
	if err != nil {
		t.Fatalf("GetEvidence() error = %v", err)
	}
	if detail.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", detail.Status, StatusCompleted)
	}
	if len(detail.Issues) != 2 {
		t.Fatalf("len(Issues) = %d, want 2", len(detail.Issues))
	}
	if detail.Issues[0].Severity != SeverityHigh {
		t.Errorf("Issues[0].Severity = %q, want %q", detail.Issues[0].Severity, SeverityHigh)
	}
}

func TestClient_GetEvidence_RejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "unknown status", body: map[string]any{"id": "e", "status": "done"}},
		{name: "confidence out of range", body: map[string]any{
			"id": "e", "status": "completed",
			"issues": []map[string]any{{"type": "x", "confidence": 1.5}},
		}},
		{name: "unknown severity", body: map[string]any{
			"id": "e", "status": "completed",
			"issues": []map[string]any{{"type": "x", "confidence": 0.5, "severity": "urgent"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			_, err := client.GetEvidence(context.Background(), "e")
			if !IsCode(err, CodeDecode) {
				t.Errorf("GetEvidence() error = %v, want %s", err, CodeDecode)
			}
		})
	}
}

func TestClient_ListProjectEvidences(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		switch r.URL.Path {
		case "/api/projects/prj 001/evidences":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "evi_001", "project_id": "prj 001", "file_url": "a.jpg", "status": "pending"},
				{"id": "evi_002", "project_id": "prj 001", "file_url": "b.jpg", "status": "completed", "issues_count": 1},
			})
		case "/api/projects/prj_bad/evidences":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "evi_003", "status": "done"}})
		default:
			_, _ = w.Write([]byte("null"))
		}
	})

	evidences, err := client.ListProjectEvidences(context.Background(), "prj 001")
	if err != nil {
		t.Fatalf("ListProjectEvidences() error = %v", err)
	}
	if gotPath != "/api/projects/prj%20001/evidences" {
		t.Errorf("path = %s, want /api/projects/prj%%20001/evidences", gotPath)
	}
	if len(evidences) != 2 {
		t.Fatalf("len(evidences) = %d, want 2", len(evidences))
	}
	if evidences[1].ID != "evi_002" || evidences[1].Status != StatusCompleted || evidences[1].IssuesCount != 1 {
		t.Errorf("evidences[1] = %+v", evidences[1])
	}

	empty, err := client.ListProjectEvidences(context.Background(), "prj_empty")
	if err != nil {
		t.Fatalf("ListProjectEvidences() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListProjectEvidences() = %v, want empty non-nil slice", empty)
	}

	_, err = client.ListProjectEvidences(context.Background(), "prj_bad")
	if !IsCode(err, CodeDecode) {
		t.Errorf("ListProjectEvidences() error = %v, want %s", err, CodeDecode)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorBody{
			Code:    CodeAlreadyProcessing,
			Message: "evidence is already being analysed",
		}})
	})

	_, err := client.AnalyzeEvidence(context.Background(), "evi_001")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("AnalyzeEvidence() error = %v, want *Error", err)
	}
	if apiErr.Code != CodeAlreadyProcessing {
		t.Errorf("Code = %q, want %q", apiErr.Code, CodeAlreadyProcessing)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusConflict)
	}
	if got := UserMessage(err); got != "This evidence is already being processed." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.GetEvidence(context.Background(), "evi_001")
	if !IsCode(err, CodeHTTP) {
		t.Fatalf("GetEvidence() error = %v, want %s", err, CodeHTTP)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q should mention the status code", err.Error())
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(url)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.GetEvidence(context.Background(), "evi_001")
	if !IsCode(err, CodeNetwork) {
		t.Fatalf("GetEvidence() error = %v, want %s", err, CodeNetwork)
	}
	if got := UserMessage(err); got != "Connection error. Check your network and try again." {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestClient_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.GetEvidence(context.Background(), "evi_001")
	if !IsCode(err, CodeNetwork) {
		t.Fatalf("GetEvidence() error = %v, want %s", err, CodeNetwork)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %s, timeout not applied", elapsed)
	}
}

func TestClient_LoginStoresToken(t *testing.T) {
	var authHeaders []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/auth/login":
			var req LoginRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "inspector@example.com" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorBody{Code: CodeInvalidCredentials, Message: "bad credentials"}})
				return
			}
			writeJSON(w, http.StatusOK, LoginResponse{AccessToken: "tok-123", User: User{ID: "usr_1", Email: req.Email}})
		default:
			writeJSON(w, http.StatusOK, AnalyzeResponse{Status: TriggerQueued})
		}
	})

	if _, err := client.Login(context.Background(), "nobody@example.com", "x"); !IsCode(err, CodeInvalidCredentials) {
		t.Fatalf("Login() error = %v, want %s", err, CodeInvalidCredentials)
	}

	resp, err := client.Login(context.Background(), "inspector@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.User.ID != "usr_1" {
		t.Errorf("User.ID = %q, want usr_1", resp.User.ID)
	}

	if _, err := client.AnalyzeEvidence(context.Background(), "evi_001"); err != nil {
		t.Fatalf("AnalyzeEvidence() error = %v", err)
	}
	if last := authHeaders[len(authHeaders)-1]; last != "Bearer tok-123" {
		t.Errorf("Authorization after login = %q, want %q", last, "Bearer tok-123")
	}
}

func TestClient_EscapesEvidenceID(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, AnalyzeResponse{Status: TriggerQueued})
	})

	if _, err := client.AnalyzeEvidence(context.Background(), "a b"); err != nil {
		t.Fatalf("AnalyzeEvidence() error = %v", err)
	}
	if gotPath != "/api/evidences/a%20b/analyze" {
		t.Errorf("path = %q, want escaped id", gotPath)
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "evi_001", "status": "processing"})
	})

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if _, err := client.GetEvidence(ctx, "evi_001"); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client, err := NewClient("http://localhost:3001/api")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: "boom"},
		{name: "not found", err: &Error{Code: CodeNotFound, Message: "evidence missing"}, want: "Resource not found."},
		{name: "validation with message", err: &Error{Code: CodeValidation, Message: "id is required"}, want: "id is required"},
		{name: "validation without message", err: &Error{Code: CodeValidation}, want: "Validation error. Check the submitted data."},
		{name: "unknown code keeps message", err: &Error{Code: "TEAPOT", Message: "short and stout"}, want: "short and stout"},
		{name: "internal without message", err: &Error{Code: CodeInternal}, want: "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
