// SPDX-License-Identifier: Apache-2.0

// Package api provides the HTTP surface of the API list daemon.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asankah/chromium-api-list/internal/apilist"
	"github.com/asankah/chromium-api-list/internal/cache"
	"github.com/asankah/chromium-api-list/internal/config"
	"github.com/asankah/chromium-api-list/internal/health"
	"github.com/asankah/chromium-api-list/internal/jobs"
	"github.com/asankah/chromium-api-list/internal/log"
	"github.com/asankah/chromium-api-list/internal/snapshot"
)

// UpdateRunner runs one update cycle. *jobs.Updater implements it.
type UpdateRunner interface {
	Run(ctx context.Context) (*jobs.Status, error)
	TargetFile() string
}

// SnapshotReader reads the snapshot archive. *snapshot.Store implements it.
type SnapshotReader interface {
	List(ctx context.Context) ([]snapshot.Meta, error)
	Get(ctx context.Context, id string) (snapshot.Meta, []byte, error)
}

// Server is the HTTP API server.
type Server struct {
	mu       sync.RWMutex
	updating atomic.Bool // serialize update cycles
	cfg      config.Config
	updater  UpdateRunner
	store    SnapshotReader // optional
	cache    cache.Cache
	health   *health.Manager
	status   *jobs.Status
	index    *apilist.Index
	started  time.Time
}

// New constructs a Server. store may be nil when history is disabled.
func New(cfg config.Config, updater UpdateRunner, store SnapshotReader, responseCache cache.Cache, healthManager *health.Manager) *Server {
	s := &Server{
		cfg:     cfg,
		updater: updater,
		store:   store,
		cache:   responseCache,
		health:  healthManager,
		started: time.Now(),
	}
	if s.cache == nil {
		s.cache = cache.NewNoOpCache()
	}
	// Serve whatever generation is already published.
	s.reloadIndex(context.Background())
	return s
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(log.Middleware())

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/list", s.handleList)
		r.Get("/entries", s.handleEntries)
		r.Get("/status", s.handleStatus)
		r.With(UpdateRateLimit(s.cfg.UpdateRateLimit)).Post("/update", s.handleUpdate)
		if s.store != nil {
			r.Get("/snapshots", s.handleSnapshots)
			r.Get("/snapshots/{id}", s.handleSnapshot)
			r.Get("/snapshots/{id}/diff/{other}", s.handleSnapshotDiff)
		}
	})
	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	logger := log.WithComponent("api")

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str(log.FieldEvent, "server.listening").
			Str("addr", s.cfg.ListenAddr).
			Msg("HTTP server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info().
			Str(log.FieldEvent, "server.stopped").
			Msg("HTTP server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Status returns the result of the most recent update cycle, if any.
func (s *Server) Status() *jobs.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RunUpdate triggers one update cycle with single-flight semantics. The
// second return value is false when a cycle is already in progress.
func (s *Server) RunUpdate(ctx context.Context, reason string) (*jobs.Status, bool, error) {
	if !s.updating.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	defer s.updating.Store(false)

	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldEvent, "update.triggered").
		Str("reason", reason).
		Msg("update triggered")

	status, err := s.updater.Run(ctx)

	s.mu.Lock()
	if err != nil {
		s.status = &jobs.Status{LastRun: time.Now(), Error: err.Error()}
	} else {
		s.status = status
	}
	s.mu.Unlock()

	if err != nil {
		return nil, true, err
	}

	s.cache.Clear()
	s.reloadIndex(ctx)
	return status, true, nil
}

// reloadIndex re-reads the published list into the query index. Serving keeps
// working on the previous generation if the file is missing or malformed.
func (s *Server) reloadIndex(ctx context.Context) {
	logger := log.WithComponentFromContext(ctx, "api")

	raw, err := os.ReadFile(s.updater.TargetFile()) // #nosec G304 -- path is derived from the configured target dir
	if err != nil {
		logger.Debug().
			Err(err).
			Str(log.FieldEvent, "index.unavailable").
			Msg("published list not readable yet")
		return
	}
	list, err := apilist.Decode(bytes.NewReader(raw))
	if err != nil {
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "index.decode_failed").
			Msg("published list does not decode, keeping previous index")
		return
	}

	s.mu.Lock()
	s.index = apilist.NewIndex(list)
	s.mu.Unlock()
}

func (s *Server) currentIndex() *apilist.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}
