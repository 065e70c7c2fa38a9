package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/sessionid"
)

// Server exposes sessions over HTTP and WebSocket.
type Server struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *log.Logger
	router   chi.Router
}

// NewServer creates a server with its own session registry.
func NewServer(cfg Config, clock quartz.Clock, rng *rand.Rand, logger *log.Logger) *Server {
	s := &Server{
		registry: NewRegistry(cfg, clock, rng, logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser front-ends are served from elsewhere
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("server"),
	}
	s.router = s.routes()
	return s
}

// Registry returns the server's session registry.
func (s *Server) Registry() *Registry { return s.registry }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
		r.Get("/{id}/ws", s.handleWebSocket)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.registry.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.registry.CloseAll()
		return err
	})
	return g.Wait()
}

// CreateSessionRequest carries the raw setup. MaxPrice may be a number, a
// numeric string, blank or absent.
type CreateSessionRequest struct {
	Digits   int             `json:"digits"`
	MaxPrice json.RawMessage `json:"maxPrice,omitempty"`
}

func (req CreateSessionRequest) config() (game.Config, error) {
	raw := string(req.MaxPrice)
	if raw == "null" {
		raw = ""
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	maxPrice, err := game.ParseMaxPrice(raw)
	if err != nil {
		return game.Config{}, err
	}
	return game.NewConfig(req.Digits, maxPrice)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorData{Code: "invalid_request", Message: err.Error()})
		return
	}

	gc, err := req.config()
	if err != nil {
		writeError(w, http.StatusBadRequest, errorData(err))
		return
	}

	session, err := s.registry.Create(gc)
	switch {
	case errors.Is(err, ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, ErrorData{Code: "too_many_sessions", Message: err.Error()})
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, errorData(err))
		return
	}

	writeJSON(w, http.StatusCreated, session.Snapshot())
}

// sessionID reads the {id} parameter, writing a 400 when it is malformed.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := sessionid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, ErrorData{Code: "invalid_session_id", Message: err.Error()})
		return "", false
	}
	return id, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	session, err := s.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrorData{Code: "not_found", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.registry.Remove(id); err != nil {
		writeError(w, http.StatusNotFound, ErrorData{Code: "not_found", Message: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket attaches a client to an existing session
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	session, err := s.registry.Attach(id)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrorData{Code: "not_found", Message: err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.Detach(id)
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, session, s.logger)
	client.Start()
	s.logger.Info("Client connected", "session", id)

	go func() {
		<-client.Done()
		s.registry.Detach(id)
		s.logger.Info("Client disconnected", "session", id)
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, data ErrorData) {
	writeJSON(w, status, data)
}
