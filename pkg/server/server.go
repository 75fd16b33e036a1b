package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/keypool"
	"mercator-hq/switchboard/pkg/telemetry/health"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
)

// Defaults for Config.
const (
	DefaultShutdownTimeout = 5 * time.Second
	DefaultCheckTimeout    = 2 * time.Second
)

// Config configures the status server.
type Config struct {
	// ListenAddress is host:port, e.g. "127.0.0.1:9090"
	ListenAddress string

	// MetricsPath serves Prometheus metrics. Default: "/metrics"
	MetricsPath string

	// ShutdownTimeout bounds graceful shutdown. Default: 5s
	ShutdownTimeout time.Duration

	// CheckTimeout bounds each readiness check. Default: 2s
	CheckTimeout time.Duration

	// Version is reported on /version
	Version string
}

// Server serves metrics, liveness and key pool status over HTTP.
//
// Routes:
//   - <MetricsPath>: Prometheus exposition
//   - /healthz: always 200 while serving
//   - /readyz: 200 when every registered check passes, else 503
//   - /keys: key pool status as JSON, keys masked
//   - /version: build version
//
// The "keys" check, registered by NewServer, fails while any provider with
// keys has none available. ProviderCheck builds a check over endpoint
// failures.
type Server struct {
	config     Config
	pools      *keypool.Registry
	collector  *metrics.Collector
	checker    *health.Checker
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a status server. collector may be nil, in which case
// the metrics route is not registered.
func NewServer(cfg Config, pools *keypool.Registry, collector *metrics.Collector, logger *slog.Logger) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:    cfg,
		pools:     pools,
		collector: collector,
		checker:   health.New(cfg.CheckTimeout),
		logger:    logger.With("component", "server"),
	}
	s.checker.Register("keys", s.checkKeys)
	return s
}

// RegisterCheck adds a readiness check served on /readyz.
func (s *Server) RegisterCheck(name string, check health.CheckFunc) {
	s.checker.Register(name, check)
}

// Start binds the listen address and serves in the background until ctx is
// cancelled or Shutdown is called. Bind errors are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.isRunning = true
	s.mu.Unlock()

	s.logger.Info("status server listening", "address", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Shutdown(context.Background())
	}()

	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("status server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.collector != nil {
		mux.Handle("GET "+s.config.MetricsPath, s.collector.Handler())
	}
	mux.Handle("GET /healthz", s.checker.LivenessHandler())
	mux.Handle("GET /readyz", s.checker.ReadinessHandler())
	mux.HandleFunc("GET /keys", s.handleKeys)
	mux.Handle("GET /version", health.VersionHandler(s.config.Version))

	return mux
}

func (s *Server) checkKeys(ctx context.Context) error {
	if names := s.pools.Exhausted(); len(names) > 0 {
		return fmt.Errorf("all keys exhausted: %s", strings.Join(names, ", "))
	}
	return nil
}

// ProviderCheck fails while degraded reports any provider.
func ProviderCheck(degraded func() []string) health.CheckFunc {
	return func(ctx context.Context) error {
		if names := degraded(); len(names) > 0 {
			return fmt.Errorf("providers degraded: %s", strings.Join(names, ", "))
		}
		return nil
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pools.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
