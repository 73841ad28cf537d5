// Package health exposes liveness and readiness endpoints for the
// gateway process.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Server serves /health and /ready on the gateway address.
type Server struct {
	addr string

	mu      sync.RWMutex
	ready   bool
	started time.Time
	srv     *http.Server
}

func NewServer(host string, port int) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		started: time.Now(),
	}
}

// SetReady flips the readiness flag once channel startup completes.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// Handler returns the health mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		ready := s.ready
		s.mu.RUnlock()

		code := http.StatusOK
		status := "ready"
		if !ready {
			code = http.StatusServiceUnavailable
			status = "starting"
		}
		s.writeJSON(w, code, map[string]any{"status": status})
	})
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	return srv.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv != nil {
		srv.Shutdown(ctx)
	}
}
