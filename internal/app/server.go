package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// NewRouter exposes /healthz (watcher state) and /metrics (Prometheus).
func NewRouter(w *Watcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(map[string]string{
			"status": "ok",
			"state":  w.State().String(),
		})
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		rw.Write(body)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// MetricsServer serves the router until its context is cancelled.
type MetricsServer struct {
	srv *http.Server
	log logger.Logger
}

// NewMetricsServer listens on addr.
func NewMetricsServer(addr string, w *Watcher, log logger.Logger) *MetricsServer {
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(w),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.Ensure(log),
	}
}

// Serve blocks until ctx is done or the listener fails.
func (m *MetricsServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		m.log.InfoObj("metrics server listening", "metrics_server", map[string]any{"addr": m.srv.Addr})
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
