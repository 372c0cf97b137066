package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/cleanbites/backend/internal/auth"
	"github.com/cleanbites/backend/internal/config"
	"github.com/cleanbites/backend/internal/database"
	"github.com/cleanbites/backend/internal/ml"
	"github.com/gorilla/websocket"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
}

// ErrorResponse is the body of every failed request. Error carries the
// underlying cause in development only.
type ErrorResponse struct {
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type Server struct {
	cfg      *config.Config
	db       database.DB
	model    ml.Model
	auth     *auth.JWTAuth
	log      *slog.Logger
	upgrader websocket.Upgrader
	clients  sync.Map
}

func New(cfg *config.Config, db database.DB, model ml.Model, logger *slog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		db:    db,
		model: model,
		auth:  auth.NewJWTAuth(cfg.Auth.JWTSecret),
		log:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the full HTTP handler: routes wrapped with CORS and
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /save-details", s.authenticated(s.handleSaveDetails))
	mux.HandleFunc("GET /get-user-details/{user_id}", s.authenticated(s.handleGetUserDetails))
	mux.HandleFunc("POST /update-user-details/{user_id}", s.authenticated(s.handleUpdateUserDetails))
	mux.HandleFunc("POST /save-food-details", s.authenticated(s.handleSaveFoodDetails))
	mux.HandleFunc("POST /extract-text-from-image", s.authenticated(s.handleExtractText))
	mux.HandleFunc("POST /gemini-call", s.authenticated(s.handleGeminiCall))
	mux.HandleFunc("POST /analyze", s.authenticated(s.handleAnalyze))
	mux.HandleFunc("GET /analyses/{user_id}", s.authenticated(s.handleHistory))
	mux.HandleFunc("GET /ws", s.authenticated(s.handleWebSocket))

	return s.logRequests(s.cors(mux))
}

// Start serves until ctx is cancelled or the process is interrupted, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.cfg.IsDevelopment() {
		s.log.Warn("Development mode enabled",
			"environment", s.cfg.Server.Environment,
			"note", "Detailed error messages will be returned to clients")
	}
	if !s.auth.Enabled() {
		s.log.Warn("JWT_SECRET not set, user ids are taken from requests unverified")
	}

	server := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.closeClients()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", "error", err)
		return err
	}
	s.log.Info("Server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: true}
	status := http.StatusOK
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error("Health check failed", "error", err)
		resp = HealthResponse{Status: "degraded", Database: false}
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Error writing response", "error", err)
	}
}

// sendErrorResponse writes an ErrorResponse, with the detailed error in
// development mode.
func (s *Server) sendErrorResponse(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil && s.cfg.IsDevelopment() {
		resp.Error = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authed, err := s.auth.Authenticate(r)
		if err != nil {
			s.log.Warn("Rejected request", "path", r.URL.Path, "error", err)
			s.auth.SetUnauthorizedHeaders(w)
			s.sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
		next(w, authed)
	}
}

// authorize rejects requests whose user id does not match the token subject.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	if auth.Authorize(r.Context(), userID) {
		return true
	}
	s.sendErrorResponse(w, http.StatusForbidden, "Forbidden: userId does not match the authenticated user", nil)
	return false
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.Server.AllowedOrigins, origin) || slices.Contains(s.cfg.Server.AllowedOrigins, "*")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes the connection through for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
