package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/psiobot/internal/agent"
	"github.com/ashureev/psiobot/internal/metrics"
	"github.com/ashureev/psiobot/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Revealer runs the revelation pipeline.
type Revealer interface {
	Reveal(ctx context.Context) (*agent.RevelationResult, error)
}

// RevelationResponse is the body of every /reveal response.
type RevelationResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// RevealHandler serves the manual revelation trigger.
type RevealHandler struct {
	revealer Revealer
	cooldown *ratelimit.Cooldown
}

// NewRevealHandler creates a handler gated by cooldown.
func NewRevealHandler(revealer Revealer, cooldown *ratelimit.Cooldown) *RevealHandler {
	return &RevealHandler{revealer: revealer, cooldown: cooldown}
}

// RegisterRoutes registers the reveal route. Callers wrap r with the API key
// middleware using RevealUnauthorized.
func (h *RevealHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reveal", h.Reveal)
}

// Reveal runs one revelation synchronously. Generation failures are reported
// in the body with a 200 status.
func (h *RevealHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	if wait, ok := h.cooldown.CheckAndUpdate(); !ok {
		metrics.ManualTriggers.WithLabelValues("rate_limited").Inc()
		JSON(w, http.StatusTooManyRequests, RevelationResponse{
			Status: fmt.Sprintf("Rate limit: Shroud is exhausted. Try again in %d seconds.", wait),
		})
		return
	}

	res, err := h.revealer.Reveal(r.Context())
	if err != nil {
		metrics.ManualTriggers.WithLabelValues("error").Inc()
		slog.Error("Manual revelation failed", "error", err)
		JSON(w, http.StatusOK, RevelationResponse{Status: "Error: " + err.Error()})
		return
	}

	metrics.ManualTriggers.WithLabelValues("ok").Inc()
	JSON(w, http.StatusOK, RevelationResponse{Message: res.Text, Status: "Success"})
}

// RevealUnauthorized is the API key rejection for /reveal.
func RevealUnauthorized(w http.ResponseWriter, _ *http.Request) {
	metrics.ManualTriggers.WithLabelValues("unauthorized").Inc()
	JSON(w, http.StatusUnauthorized, RevelationResponse{
		Status: "Unauthorized: Invalid or Missing API Key",
	})
}
