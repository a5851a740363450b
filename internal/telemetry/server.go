package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Server exposes /metrics, /healthz and /readyz while a benchmark runs.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	ready      atomic.Bool
	wg         sync.WaitGroup

	mu     sync.RWMutex
	checks map[string]func() bool
}

// Serve starts listening on bind. metrics may be nil.
func Serve(bind string, metrics http.Handler, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, err
	}
	s := &Server{logger: logger, listener: ln, checks: make(map[string]func() bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics server started", slog.String("addr", s.Addr()))
	return s, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// AddCheck registers a dependency reported by /healthz.
func (s *Server) AddCheck(name string, healthy func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = healthy
}

// SetReady toggles the /readyz response.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	var failing []string
	for name, healthy := range s.checks {
		if !healthy() {
			failing = append(failing, name)
		}
	}
	s.mu.RUnlock()
	if len(failing) > 0 {
		sort.Strings(failing)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy: " + strings.Join(failing, ",")))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
