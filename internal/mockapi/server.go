package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jpalmerr/inspectwatch/internal/api"
)

const (
	// DefaultProcessingTime is how long a simulated analysis runs.
	DefaultProcessingTime = 3 * time.Second

	// DefaultTokenTTL is the lifetime of login tokens.
	DefaultTokenTTL = 24 * time.Hour

	minPasswordLength = 8
	shutdownTimeout   = 5 * time.Second
)

// Config configures the mock API server.
type Config struct {
	// Port to listen on; 0 picks a free port.
	Port int

	// ProcessingTime is how long an analysis stays processing before a GET
	// observes its terminal state.
	ProcessingTime time.Duration

	// JWTSecret signs login tokens. Required.
	JWTSecret string

	// FailEvidences lists evidence ids whose analysis ends in error.
	FailEvidences []string

	Logger *slog.Logger

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Server simulates the inspection portal API.
//
// Analyses are advanced lazily: a processing evidence becomes terminal on
// the first read after ProcessingTime has elapsed.
type Server struct {
	repo   Repository
	cfg    Config
	jwt    JWT
	fail   map[string]bool
	logger *slog.Logger
	router chi.Router

	// mu serialises read-modify-write cycles on the repository.
	mu sync.Mutex

	addr       string
	httpServer *http.Server
}

// New creates a mock API server backed by repo.
func New(repo Repository, cfg Config) (*Server, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.ProcessingTime < 0 {
		return nil, fmt.Errorf("processing time must not be negative, got %s", cfg.ProcessingTime)
	}
	if cfg.ProcessingTime == 0 {
		cfg.ProcessingTime = DefaultProcessingTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fail := make(map[string]bool, len(cfg.FailEvidences))
	for _, id := range cfg.FailEvidences {
		fail[id] = true
	}

	s := &Server{
		repo:   repo,
		cfg:    cfg,
		jwt:    JWT{Secret: []byte(cfg.JWTSecret), TokenTTL: DefaultTokenTTL},
		fail:   fail,
		logger: logger,
		router: chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler; every route lives under /api.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.jwt))
			r.Get("/projects/{id}/evidences", s.handleProjectEvidences)
			r.Get("/evidences/{id}", s.handleGetEvidence)
			r.Post("/evidences/{id}/analyze", s.handleAnalyze)
		})
	})
}

// Start listens on the configured port and serves in the background until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mock api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("mock api shutdown error", "error", err)
		}
	}()

	s.logger.Info("mock api listening", "addr", s.addr)
	return nil
}

// Addr returns the listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "invalid login payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < minPasswordLength {
		writeError(w, http.StatusUnauthorized, api.CodeInvalidCredentials, "invalid email or password")
		return
	}

	user := MockUser
	user.Email = req.Email

	token, _, err := s.jwt.Sign(Claims{
		Email:            user.Email,
		Role:             user.Role,
		RegisteredClaims: jwtSubject(user.ID),
	})
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		writeError(w, http.StatusInternalServerError, api.CodeInternal, "failed to issue token")
		return
	}

	s.logger.Info("login", "email", user.Email)
	writeJSON(w, http.StatusOK, api.LoginResponse{AccessToken: token, User: user})
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, err := s.advance(r.Context(), id)
	s.mu.Unlock()

	if err != nil {
		s.writeRepoError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Detail)
}

// handleProjectEvidences lists the evidences of a project. An unknown project
// has no evidences.
func (s *Server) handleProjectEvidences(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list evidences", "project_id", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}

	evidences := []api.Evidence{}
	for _, rec := range recs {
		if rec.Detail.ProjectID != projectID {
			continue
		}
		current, err := s.advance(r.Context(), rec.Detail.ID)
		if err != nil {
			s.writeRepoError(w, rec.Detail.ID, err)
			return
		}
		evidences = append(evidences, current.Detail.Evidence)
	}
	writeJSON(w, http.StatusOK, evidences)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.advance(r.Context(), id)
	if err != nil {
		s.writeRepoError(w, id, err)
		return
	}
	if rec.Detail.Status == api.StatusProcessing {
		writeError(w, http.StatusConflict, api.CodeAlreadyProcessing, "evidence is already being analysed")
		return
	}

	now := s.cfg.Now().UTC()
	rec.Detail.Status = api.StatusProcessing
	rec.AnalysisStartedAt = &now
	if err := s.repo.Put(r.Context(), rec); err != nil {
		s.logger.Error("failed to store evidence", "evidence_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, api.CodeInternal, "failed to start analysis")
		return
	}

	s.logger.Info("analysis started", "evidence_id", id)
	writeJSON(w, http.StatusAccepted, api.AnalyzeResponse{Status: api.TriggerProcessing})
}

// advance loads id and, when its simulated analysis is due, moves it to its
// terminal state. Callers hold s.mu.
func (s *Server) advance(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Detail.Status != api.StatusProcessing || rec.AnalysisStartedAt == nil {
		return rec, nil
	}

	now := s.cfg.Now().UTC()
	if now.Sub(*rec.AnalysisStartedAt) < s.cfg.ProcessingTime {
		return rec, nil
	}

	rec.AnalysisStartedAt = nil
	rec.Detail.AnalyzedAt = &now
	if s.fail[id] {
		rec.Detail.Status = api.StatusError
		rec.Detail.Issues = []api.Issue{}
		rec.Detail.IssuesCount = 0
	} else {
		rec.Detail.Status = api.StatusCompleted
		rec.Detail.Issues = []api.Issue{{
			ID:          "iss_" + uuid.NewString(),
			Type:        "mock_issue",
			Description: "Issue detected automatically (mock)",
			Confidence:  0.85,
			Severity:    api.SeverityMedium,
		}}
		rec.Detail.IssuesCount = len(rec.Detail.Issues)
	}

	if err := s.repo.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("analysis finished", "evidence_id", id, "status", rec.Detail.Status.String())
	return rec, nil
}

func (s *Server) writeRepoError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, api.CodeNotFound, fmt.Sprintf("evidence %s not found", id))
		return
	}
	s.logger.Error("repository error", "evidence_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{Code: code, Message: message}})
}
