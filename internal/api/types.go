package api

import (
	"fmt"
	"time"
)

// AnalysisStatus is the server-side state of an evidence item's analysis job.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusError      AnalysisStatus = "error"
)

// String returns the string representation of the status.
func (s AnalysisStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the four known statuses.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s ends an analysis job.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ParseStatus converts s to an AnalysisStatus.
func ParseStatus(s string) (AnalysisStatus, error) {
	status := AnalysisStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown analysis status %q", s)
	}
	return status, nil
}

// Severity grades a detected issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Location is a bounding box within the evidence image.
type Location struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Issue is a defect detected by the analysis.
type Issue struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Severity    Severity  `json:"severity,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// Validate checks the confidence range and the severity enum.
func (i Issue) Validate() error {
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("issue %q: confidence %v outside [0,1]", i.Type, i.Confidence)
	}
	if i.Severity != "" && !i.Severity.Valid() {
		return fmt.Errorf("issue %q: unknown severity %q", i.Type, i.Severity)
	}
	return nil
}

// Evidence is a photo uploaded to a project.
type Evidence struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	FileURL      string         `json:"file_url"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Status       AnalysisStatus `json:"status"`
	UploadedAt   *time.Time     `json:"uploaded_at,omitempty"`
	AnalyzedAt   *time.Time     `json:"analyzed_at,omitempty"`
	IssuesCount  int            `json:"issues_count"`
}

// EvidenceDetail is an Evidence together with its detected issues.
type EvidenceDetail struct {
	Evidence
	Issues []Issue `json:"issues"`
}

// Validate checks the status and every issue.
func (e EvidenceDetail) Validate() error {
	if !e.Status.Valid() {
		return fmt.Errorf("evidence %q: unknown analysis status %q", e.ID, e.Status)
	}
	for _, issue := range e.Issues {
		if err := issue.Validate(); err != nil {
			return fmt.Errorf("evidence %q: %w", e.ID, err)
		}
	}
	return nil
}

// AnalyzeResponse is returned by the trigger endpoint. Status is either
// "queued" or "processing".
type AnalyzeResponse struct {
	Status string `json:"status"`
}

const (
	TriggerQueued     = "queued"
	TriggerProcessing = "processing"
)

// Accepted reports whether the server started (or is already running) the job.
func (r AnalyzeResponse) Accepted() bool {
	return r.Status == TriggerQueued || r.Status == TriggerProcessing
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the authenticated portal user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// LoginResponse carries the bearer token used on later requests.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// ErrorBody is the payload of the portal's error envelope.
type ErrorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the portal's error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
