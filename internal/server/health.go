// Package server provides the minimal HTTP status surface named in §10's
// dependency-wiring notes: a liveness probe and a read-only status snapshot
// derived from the Worker Heartbeat. The dashboard/REST API the original
// system built on top of the shared KV is out of this spec's scope (§1
// Non-goals); only this thin observability surface remains.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the process is
// alive. It deliberately does not report worker state — that lives at
// /status — so a load balancer's liveness probe never trips on a
// legitimately IDLE worker.
// GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
