// Package web serves the layout engine over HTTP.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"calgrid/internal/engine"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/source"
)

// DefaultBatchTTL is how long a fetched source batch is served before a
// request triggers a refresh.
const DefaultBatchTTL = 5 * time.Minute

// Server exposes navigation and layout endpoints over one shared view state.
type Server struct {
	provider source.Provider
	opts     engine.Options
	view     *ViewHolder
	metrics  *Metrics

	mu        sync.RWMutex
	batch     source.Batch
	updatedAt time.Time
	ttl       time.Duration

	// refreshMu serializes provider fetches.
	refreshMu sync.Mutex

	now func() time.Time
}

// Options configure a Server.
type Options struct {
	Engine   engine.Options
	View     model.ViewState
	BatchTTL time.Duration
	Metrics  *Metrics
}

// NewServer returns a Server reading events from provider.
func NewServer(provider source.Provider, opts Options) *Server {
	if opts.BatchTTL <= 0 {
		opts.BatchTTL = DefaultBatchTTL
	}
	if opts.Engine.Location == nil {
		opts.Engine.Location = time.Local
	}
	return &Server{
		provider: provider,
		opts:     opts.Engine,
		view:     NewViewHolder(opts.View),
		metrics:  opts.Metrics,
		ttl:      opts.BatchTTL,
		now:      time.Now,
	}
}

// View returns the navigation state holder.
func (s *Server) View() *ViewHolder { return s.view }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	route := func(name string, h http.HandlerFunc) http.Handler {
		return s.metrics.WrapHandler(name, h)
	}

	r.Method(http.MethodGet, "/health", route("health", s.handleHealth))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/view", route("view", s.handleView))
		r.Method(http.MethodPost, "/view/navigate", route("navigate", s.handleNavigate))
		r.Method(http.MethodPost, "/view/goto", route("goto", s.handleGoTo))
		r.Method(http.MethodPost, "/view/mode", route("mode", s.handleMode))
		r.Method(http.MethodPost, "/view/today", route("today", s.handleToday))
		r.Method(http.MethodGet, "/layout", route("layout", s.handleLayout))
		r.Method(http.MethodGet, "/agenda", route("agenda", s.handleAgenda))
		r.Method(http.MethodGet, "/layers", route("layers", s.handleLayers))
		r.Method(http.MethodPost, "/refresh", route("refresh", s.handleRefresh))
	})
	return r
}

// Refresh fetches the provider and replaces the cached batch. A failed
// fetch that still produced events replaces the cache; one that produced
// nothing keeps the previous batch.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	b, err := s.provider.Fetch(ctx)
	s.metrics.refreshed(err, len(b.Events))
	if err != nil {
		appLog.Error("source refresh failed", err, "source", s.provider.Name(), "events", len(b.Events))
		if len(b.Events) == 0 {
			s.mu.Lock()
			hasBatch := !s.updatedAt.IsZero()
			s.mu.Unlock()
			if hasBatch {
				return err
			}
		}
	}
	if b.Layers == nil {
		b.Layers = model.LayerMap{}
	}

	s.mu.Lock()
	s.batch = b
	s.updatedAt = s.now()
	s.mu.Unlock()
	appLog.Info("source refreshed", "source", s.provider.Name(), "events", len(b.Events), "layers", len(b.Layers))
	return err
}

// currentBatch returns the cached batch, refreshing it when stale.
func (s *Server) currentBatch(ctx context.Context) source.Batch {
	s.mu.RLock()
	b, updated := s.batch, s.updatedAt
	s.mu.RUnlock()

	if !updated.IsZero() && s.now().Sub(updated) < s.ttl {
		s.metrics.cacheHit()
		return b
	}
	s.metrics.cacheMiss()
	_ = s.Refresh(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
