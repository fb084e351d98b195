package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/inspectwatch/internal/api"
	"github.com/jpalmerr/inspectwatch/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE or
	// WebSocket write. Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "InspectWatch"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Controller performs operator actions on tracked analyses.
//
// Implementations return an error wrapping an *api.Error when the action was
// refused or failed; the evidence id is known to the store when it is called.
type Controller interface {
	Trigger(ctx context.Context, evidenceID string) error
	Retry(ctx context.Context, evidenceID string) error
	Stop(evidenceID string) error
}

// Server handles HTTP requests for the dashboard and its API.
//
// Routes:
//   - GET /: embedded dashboard HTML
//   - GET /api/analyses: all job snapshots as JSON
//   - GET /api/analyses/{id}: one job snapshot
//   - POST /api/analyses/{id}/trigger|retry|stop: operator actions
//   - GET /api/sse: Server-Sent Events stream of job updates
//   - GET /api/ws: WebSocket stream of job updates
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	controller Controller
	port       int
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for job snapshots
//   - ctrl: Controller for operator actions (nil disables them)
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "InspectWatch" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, ctrl Controller, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      st,
		controller: ctrl,
		port:       port,
		router:     chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		assets: assets,
		title:  title,
		logger: logger,
	}
	s.routes()
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/analyses/{id}", s.handleGetAnalysis)
		r.Post("/analyses/{id}/trigger", s.handleAction(actionTrigger))
		r.Post("/analyses/{id}/retry", s.handleAction(actionRetry))
		r.Post("/analyses/{id}/stop", s.handleAction(actionStop))
		r.Get("/sse", s.handleSSE)
		r.Get("/ws", s.handleWS)
	})

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so that streaming handlers end on
		// shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// escape the title to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, api.CodeNotFound, fmt.Sprintf("no analysis tracked for evidence %q", id))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, job)
}

type action string

const (
	actionTrigger action = "trigger"
	actionRetry   action = "retry"
	actionStop    action = "stop"
)

// handleAction runs an operator action and answers with the resulting
// snapshot.
func (s *Server) handleAction(a action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := s.store.Get(id); !ok {
			s.writeError(w, http.StatusNotFound, api.CodeNotFound, fmt.Sprintf("no analysis tracked for evidence %q", id))
			return
		}
		if s.controller == nil {
			s.writeError(w, http.StatusServiceUnavailable, api.CodeInternal, "actions are disabled")
			return
		}

		var err error
		switch a {
		case actionTrigger:
			err = s.controller.Trigger(r.Context(), id)
		case actionRetry:
			err = s.controller.Retry(r.Context(), id)
		case actionStop:
			err = s.controller.Stop(id)
		}

		if err != nil {
			s.logger.Warn("analysis action failed",
				"action", string(a),
				"evidence_id", id,
				"error", err.Error(),
			)
			status, code := actionErrorStatus(err)
			s.writeError(w, status, code, api.UserMessage(err))
			return
		}

		s.logger.Info("analysis action", "action", string(a), "evidence_id", id)
		job, _ := s.store.Get(id)
		s.writeJSON(w, http.StatusAccepted, job)
	}
}

// actionErrorStatus maps a controller error to an HTTP status and code.
func actionErrorStatus(err error) (int, string) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, api.CodeInternal
	}
	switch apiErr.Code {
	case api.CodeAlreadyProcessing:
		return http.StatusConflict, apiErr.Code
	case api.CodeNotFound:
		return http.StatusNotFound, apiErr.Code
	case api.CodeValidation:
		return http.StatusBadRequest, apiErr.Code
	default:
		return http.StatusBadGateway, apiErr.Code
	}
}

// handleSSE streams job updates via Server-Sent Events.
//
// Writes use deadlines so that a slow or disconnected client cannot block the
// handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may be unsupported by some ResponseWriter implementations
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, job := range s.store.GetAll() {
		data, err := json.Marshal(job)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case job, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(job)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}

// handleWS streams the same job snapshots as handleSSE over a WebSocket.
// Messages sent by the client are ignored.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read loop handles control frames and notices a closed client
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	write := func(job store.Job) error {
		if err := conn.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(job)
	}

	for _, job := range s.store.GetAll() {
		if err := write(job); err != nil {
			return
		}
	}

	for {
		select {
		case job, ok := <-ch:
			if !ok {
				return
			}
			if err := write(job); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes the inspection portal's error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{Code: code, Message: message}})
}
