package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/signmaker/internal/api"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the /health body.
type HealthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health reports ok, or 503 when the memory store does not answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			api.JSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "degraded", Store: "unreachable"})
			return
		}
	}
	api.JSON(w, http.StatusOK, HealthStatus{Status: "ok"})
}
