// Package server exposes the mock MES over HTTP with JSON bodies.
//
// Every request is turned into a [command.Command] and executed by a
// [command.Dispatcher], so the HTTP layer only shapes requests and responses.
// Errors are reported as {"error": message, "kind": kind} with the status code
// picked from the fault kind: 404 not found, 400 invalid argument, 409 failed
// precondition, 500 otherwise.
//
// Key types:
//   - [Server] - listener lifecycle ([Server.Start], [Server.Shutdown]) and handlers
//   - [Settings] - bind address and timeouts
//   - [Option] - functional options for logger, clock and request ids
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"mockmes/internal/command"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Settings configures the listener.
type Settings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns host:port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Server serves the HTTP API for one backend.
type Server struct {
	settings   Settings
	dispatcher *command.Dispatcher
	logger     *slog.Logger
	clock      func() time.Time
	newID      func() string

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock lets tests control uptime.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRequestIDs overrides request id generation. Defaults to random UUIDs.
func WithRequestIDs(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewServer creates a server driving backend.
func NewServer(settings Settings, backend command.Backend, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.dispatcher = command.NewDispatcher(backend)
	s.dispatcher.SetLogger(s.logger)
	return s
}

// Handler returns the routed handler wrapped with request ids and access
// logging. Start uses it; tests can mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /routing", s.handleCreateRouting)
	mux.HandleFunc("GET /routing/{id}", s.handleGetRouting)
	mux.HandleFunc("GET /routings", s.handleListRoutings)

	mux.HandleFunc("POST /sfc", s.handleCreateSFC)
	mux.HandleFunc("GET /sfcs", s.handleListSFCs)
	mux.HandleFunc("GET /sfc/{id}", s.handleGetSFC)
	mux.HandleFunc("GET /sfc/{id}/routing_state", s.handleRoutingState)
	mux.HandleFunc("GET /sfc/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /sfc/{id}/assign_routing", s.handleAssignRouting)
	mux.HandleFunc("POST /sfc/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /sfc/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /sfc/{id}/rollback", s.handleRollback)
	mux.HandleFunc("POST /sfc/{id}/rollback_single", s.handleRollbackSingle)
	mux.HandleFunc("POST /sfc/{id}/force_advance", s.handleForceAdvance)

	return s.withAccessLog(mux)
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("server already started")
	}

	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the http:// URL of the running server, or of the
// configured address before Start.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		addr = s.settings.Address()
	}
	return "http://" + addr
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = s.newID()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}
