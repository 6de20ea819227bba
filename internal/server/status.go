package server

import (
	"net/http"

	"github.com/arbworker/livearb/internal/domain"
)

// HeartbeatSource supplies the most recently written WorkerHeartbeat for
// the status endpoint to project. Implementations read from the same
// in-memory state the lifecycle's heartbeat loop snapshots, not from the
// external KV, so /status never blocks on a round trip.
type HeartbeatSource interface {
	LastHeartbeat() (domain.WorkerHeartbeat, bool)
}

// StatusHandler serves a read-only projection of the latest heartbeat.
type StatusHandler struct {
	source HeartbeatSource
}

// NewStatusHandler creates a StatusHandler backed by the given
// HeartbeatSource.
func NewStatusHandler(source HeartbeatSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// GetStatus responds with the worker's current lifecycle state, tick
// count, and per-venue connection status.
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	hb, ok := h.source.LastHeartbeat()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no heartbeat recorded yet"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":             hb.State,
		"tickCount":         hb.TickCount,
		"updatedAt":         hb.UpdatedAt,
		"platforms":         hb.Platforms,
		"circuitBreaker":    hb.CircuitBreaker,
		"refreshInProgress": hb.RefreshInProgress,
		"lastRefreshAt":     hb.LastRefreshAt,
	})
}
