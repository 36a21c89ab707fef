package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/go-chi/chi/v5"
)

const defaultActivityLimit = 50

// ActivitySource lists journaled actions, newest first.
type ActivitySource interface {
	Recent(ctx context.Context, limit int) ([]*domain.Action, error)
}

// ActivityHandler serves the action journal.
type ActivityHandler struct {
	source ActivitySource
}

// NewActivityHandler creates an activity handler.
func NewActivityHandler(source ActivitySource) *ActivityHandler {
	return &ActivityHandler{source: source}
}

// RegisterRoutes registers the activity routes.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/activity", h.List)
}

// List returns recent actions. ?limit=N bounds the result.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	actions, err := h.source.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list activity", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if actions == nil {
		actions = []*domain.Action{}
	}
	JSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StateReporter exposes in-memory store sizes.
type StateReporter interface {
	Len() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	memory  StateReporter
	cache   StateReporter
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, memory, cache StateReporter) *HealthHandler {
	return &HealthHandler{db: db, memory: memory, cache: cache, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.memory != nil {
		status["memory_entries"] = h.memory.Len()
	}
	if h.cache != nil {
		status["cached_threads"] = h.cache.Len()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
