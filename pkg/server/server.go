// Package server exposes the relay over a local loopback HTTP endpoint:
// callers POST commands and batches, the executor GETs pending commands and
// POSTs results. Responses carry permissive CORS headers so local tooling
// and extension pages can reach the relay; there is no authentication.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/taskrelay/pkg/batch"
	"github.com/entrhq/taskrelay/pkg/config"
	"github.com/entrhq/taskrelay/pkg/logging"
	"github.com/entrhq/taskrelay/pkg/relay"
)

// Version identifies the relay in the health check response.
const Version = "0.1.0"

// Server wires the relay, sequencer, and log sink behind HTTP handlers.
type Server struct {
	relay   *relay.Relay
	seq     *batch.Sequencer
	sink    logging.Sink
	cfg     *config.Config
	allowed []glob.Glob
	srv     *http.Server
	logger  *logging.Logger
}

// New builds a server from its collaborators. The sink and logger may be
// nil; cfg must already be validated.
func New(cfg *config.Config, rly *relay.Relay, seq *batch.Sequencer, sink logging.Sink, logger *logging.Logger) (*Server, error) {
	allowed, err := cfg.CompileAllowlist()
	if err != nil {
		return nil, err
	}

	s := &Server{
		relay:   rly,
		seq:     seq,
		sink:    sink,
		cfg:     cfg,
		allowed: allowed,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /command", s.handleSubmit)
	mux.HandleFunc("GET /command", s.handlePoll)
	mux.HandleFunc("POST /result", s.handleResult)
	mux.HandleFunc("POST /batch", s.handleBatch)
	mux.HandleFunc("POST /logs", s.handleAppendLog)
	mux.HandleFunc("GET /logs", s.handleQueryLogs)

	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.withCORS(mux),
		// WriteTimeout must outlast the longest command wait.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CommandTimeout.Std() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// ListenAndServe binds the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.infof("relay listening on %s", s.cfg.Addr)
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}
	return s.srv.Serve(ln)
}

// Handler returns the server's HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// withCORS applies permissive cross-origin headers to every response and
// answers preflight requests directly.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// toolPermitted checks the configured allowlist. An empty allowlist permits
// everything; relay-local tools are always permitted.
func (s *Server) toolPermitted(tool string) bool {
	if len(s.allowed) == 0 || s.relay.IsLocal(tool) {
		return true
	}
	for _, g := range s.allowed {
		if g.Match(tool) {
			return true
		}
	}
	return false
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

func (s *Server) infof(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}
