package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dfsgate/internal/logger"
)

// DefaultPort is the metrics port used when none is configured.
const DefaultPort = 9090

// Server exposes the global registry over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics, or 503 when metrics are disabled
//   - GET /healthz: plain "ok"
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// Port to listen on. Default: 9090
	Port int

	// Host to bind. Empty binds every interface.
	Host string
}

// NewServer creates a stopped server. Call Start to serve.
func NewServer(config ServerConfig) *Server {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      newMux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{server: server, port: config.Port}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	if registry := GetRegistry(); registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "ok\n")
	})

	return mux
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
//
// Returns nil on graceful shutdown, or the listener error if the server
// could not start.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already cancelled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
