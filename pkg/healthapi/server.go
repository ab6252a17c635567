// Package healthapi is a SPEC_FULL supplement: an ambient HTTP surface for
// liveness probing and Prometheus scraping, separate from the client/NS/peer
// wire protocol. Grounded on pkg/api's chi-based Server/NewRouter shape.
package healthapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/metrics"
)

// Server exposes GET /healthz (liveness) and GET /metrics (Prometheus
// scrape target, only when metrics.IsEnabled()).
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once

	ready        atomic.Bool
	shuttingDown atomic.Bool
}

// NewServer builds a Server bound to addr. store is consulted by /healthz to
// report the current entry count; a nil store still serves a bare 200 OK.
// The server reports 503 until SetReady(true) is called and again once
// BeginShutdown is called, per spec: 200 only while NS registration is
// complete and the accept loops are serving.
func NewServer(addr string, store *metadata.Store) *Server {
	s := &Server{}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if s.shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "shutting down")
			return
		}
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		if store != nil {
			fmt.Fprintf(w, "ok entries=%d\n", store.Count())
			return
		}
		fmt.Fprintln(w, "ok")
	})

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	return s
}

// SetReady marks the node as having completed NS registration and having
// its accept loops serving. /healthz returns 200 only after this is set.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// BeginShutdown marks /healthz as unavailable for the remainder of the
// server's life. Once called, /healthz always returns 503, regardless of
// SetReady.
func (s *Server) BeginShutdown() {
	s.shuttingDown.Store(true)
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("health API listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("health API server failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
