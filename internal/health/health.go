// Package health provides liveness and readiness handlers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck serves liveness and readiness probes.
type HealthCheck struct {
	pinger Pinger
	logger *zap.Logger
}

// NewHealthCheck creates a new health check.
func NewHealthCheck(pinger Pinger, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{pinger: pinger, logger: logger}
}

// LivenessHandler reports that the process is up.
func (h *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// ReadinessHandler reports whether the storage backend is reachable.
func (h *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		writeStatus(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
