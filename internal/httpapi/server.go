// Package httpapi exposes the AgentLoop over HTTP: POST /runs to start a
// run, GET /runs/{id} for its current state, GET /runs/{id}/events to
// stream its event log, and POST /runs/{id}/cancel to request a stop.
//
// Grounded on the teacher's internal/server/server.go for the
// mux/Config/csrfProtect shape (Go 1.22+ method+pattern routing, origin
// checks restricted to localhost-family hosts), adapted from the
// in-memory Broadcaster push model to this module's poll-based
// store.Tail, since runs survive process restarts and a new HTTP process
// may not have been present when a given run's events were produced.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/softnix/agentic-core/internal/agentloop"
	"github.com/softnix/agentic-core/internal/obslog"
	"github.com/softnix/agentic-core/internal/store"
)

// Config holds server configuration.
type Config struct {
	Addr string
}

// Server is the HTTP surface over one AgentLoop/FilesystemStore pair.
type Server struct {
	cfg     Config
	loop    *agentloop.AgentLoop
	store   *store.FilesystemStore
	baseCtx context.Context
	cancel  context.CancelFunc
	httpSrv *http.Server
	logger  *slog.Logger
}

func New(cfg Config, loop *agentloop.AgentLoop, st *store.FilesystemStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		loop:    loop,
		store:   st,
		baseCtx: ctx,
		cancel:  cancel,
		logger:  obslog.New(nil),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /runs/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)
	mux.HandleFunc("POST /runs/{id}/resume", s.handleResumeRun)

	s.httpSrv = &http.Server{
		Handler:      csrfProtect(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streaming requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	return s
}

// ListenAndServe starts the server and blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.httpSrv.Addr = s.cfg.Addr
	s.logger.Info("httpapi: listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's http.Handler, for tests that want to drive
// it with httptest.NewServer instead of binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// csrfProtect rejects cross-origin POST requests from browser contexts,
// allowing only localhost-family origins (or no Origin header at all, as
// set by CLI/programmatic callers).
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			origin := r.Header.Get("Origin")
			if origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					http.Error(w, `{"error":"invalid Origin header"}`, http.StatusForbidden)
					return
				}
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					http.Error(w, `{"error":"cross-origin request blocked"}`, http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
