// Package statusserver exposes health, status and metrics endpoints for a
// running host.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/workerservice/internal/appinfo"
	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
)

// UnitStatus is the reported state of one hosted unit.
type UnitStatus struct {
	Name  string          `json:"name"`
	State lifecycle.State `json:"-"`
}

// StatusFunc returns the current state of every hosted unit.
type StatusFunc func() []UnitStatus

// Config holds the status server settings.
type Config struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	// Default: 5 seconds
	ReadHeaderTimeout time.Duration
}

// Server serves /healthz, /status and /metrics.
type Server struct {
	cfg      Config
	info     appinfo.Info
	units    StatusFunc
	gatherer prometheus.Gatherer
	logger   log.Logger
	started  time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a status server. gatherer may be nil to disable /metrics.
func New(cfg Config, info appinfo.Info, units StatusFunc, gatherer prometheus.Gatherer, logger log.Logger) *Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Server{
		cfg:      cfg,
		info:     info,
		units:    units,
		gatherer: gatherer,
		logger:   logger.With(log.String("component", "status-server")),
	}
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("status server listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.started = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped unexpectedly", log.Err(err))
		}
	}()

	s.logger.Info("status server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status string            `json:"status"`
	Units  map[string]string `json:"units"`
}

type statusResponse struct {
	App       appinfo.Info      `json:"app"`
	StartedAt string            `json:"started_at"`
	Uptime    string            `json:"uptime"`
	Units     map[string]string `json:"units"`
}

// health returns 200 when every unit is running and 503 otherwise.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	units, healthy := s.snapshot()

	code, status := http.StatusOK, "healthy"
	if !healthy {
		code, status = http.StatusServiceUnavailable, "unhealthy"
	}
	writeJSON(w, code, healthResponse{Status: status, Units: units})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	units, _ := s.snapshot()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, statusResponse{
		App:       s.info,
		StartedAt: started.UTC().Format(time.RFC3339),
		Uptime:    time.Since(started).Round(time.Second).String(),
		Units:     units,
	})
}

func (s *Server) snapshot() (map[string]string, bool) {
	units := make(map[string]string)
	healthy := true
	if s.units == nil {
		return units, healthy
	}
	for _, u := range s.units() {
		units[u.Name] = u.State.String()
		if u.State != lifecycle.StateRunning {
			healthy = false
		}
	}
	return units, healthy
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
