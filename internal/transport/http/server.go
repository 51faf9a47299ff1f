package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"avalon/internal/app"
	"avalon/internal/config"
	"avalon/internal/speech"
)

// Session is the game session the control API drives
type Session interface {
	Do(fn func(c *app.Controller) error) error
	View() (app.View, error)
}

// Speech is the speech queue as the control API sees it
type Speech interface {
	Status() speech.Status
	SetEnabled(enabled bool) bool
	Test(text string) error
}

// Server is the local control API standing in for the game page's buttons
type Server struct {
	server  *http.Server
	session Session
	speech  Speech
	events  http.Handler
	config  *config.Config
	logger  *slog.Logger
}

// NewServer creates a new control API server. events, when set, serves
// subscriber websockets at /api/events.
func NewServer(cfg *config.Config, session Session, speech Speech, events http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		session: session,
		speech:  speech,
		events:  events,
		config:  cfg,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed control API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/view", s.handleView)
		if s.events != nil {
			r.Method(http.MethodGet, "/events", s.events)
		}

		r.Get("/speech", s.handleSpeechStatus)
		r.Post("/speech", s.handleSpeechToggle)
		r.Post("/speech/test", s.handleSpeechTest)

		r.Post("/roster", s.handleAddPlayer)
		r.Delete("/roster/{index}", s.handleRemovePlayer)
		r.Post("/acting-player", s.handleActingPlayer)
		r.Post("/chat", s.handleChat)

		r.Post("/start", s.handleStart)
		r.Post("/selection/{name}", s.handleToggleSelection)
		r.Post("/team", s.handleProposeTeam)
		r.Post("/vote/team", s.handleVoteTeam)
		r.Post("/vote/mission", s.handleVoteMission)
		r.Post("/assassinate", s.handleAssassinate)
		r.Post("/reset", s.handleReset)
	})

	return r
}

// middleware wraps the handler with CORS and request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Polling the view is noisy outside development
		if s.config.IsDevelopment() || !isPollRequest(r) {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
			)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("control api starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("control api shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isPollRequest checks if the request only reads state
func isPollRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/")
}
