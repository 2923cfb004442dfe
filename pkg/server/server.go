// Package server exposes a read-only HTTP facade over the latest analysis:
// health, the current report, and provider status.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/pipeline"
)

// API serves the read-only report surface.
type API struct {
	router *chi.Mux
	logger *slog.Logger
	server *http.Server
	pipe   *pipeline.Pipeline

	shutdownTimeout time.Duration

	mu     sync.RWMutex
	latest *costmodel.AnalysisResult
}

// Config holds server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// New builds the API around an existing pipeline. The initial report may be
// nil; SetResult publishes one later.
func New(logger *slog.Logger, cfg Config, pipe *pipeline.Pipeline, initial *costmodel.AnalysisResult) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	a := &API{
		logger: logger,
		pipe:   pipe,
		latest: initial,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", a.handleHealth)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", a.handleReport)
		r.Get("/providers", a.handleProviders)
	})

	a.router = router
	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.shutdownTimeout = cfg.ShutdownTimeout
	return a
}

// SetResult publishes a new report to readers.
func (a *API) SetResult(result *costmodel.AnalysisResult) {
	a.mu.Lock()
	a.latest = result
	a.mu.Unlock()
}

// Handler exposes the router for tests.
func (a *API) Handler() http.Handler { return a.router }

// Start serves until SIGINT/SIGTERM, then drains in-flight requests.
func (a *API) Start() error {
	errs := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		a.logger.Info("server listening", "addr", a.server.Addr)
		errs <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-shutdown:
		a.logger.Info("shutdown initiated")
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("graceful shutdown failed", "error", err)
			return a.server.Close()
		}
	}
	return nil
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	latest := a.latest
	a.mu.RUnlock()

	if latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report available yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (a *API) handleProviders(w http.ResponseWriter, r *http.Request) {
	statuses := a.pipe.Status(r.Context())
	writeJSON(w, http.StatusOK, statuses)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
