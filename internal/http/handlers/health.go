package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// HealthChecker probes the backend.
type HealthChecker interface {
	Health(ctx context.Context) (gateway.Health, error)
}

// HealthHandler reports this service and the backend it depends on.
type HealthHandler struct {
	backend HealthChecker
	logger  *logging.Logger
	now     func() time.Time
}

func NewHealthHandler(backend HealthChecker, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{backend: backend, logger: logger, now: time.Now}
}

type healthResponse struct {
	Status    string `json:"status"`
	Backend   string `json:"backend"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Health is GET /health. The backend probe is bounded by the gateway's
// health timeout.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: h.now().UTC().Format(time.RFC3339)}
	health, err := h.backend.Health(r.Context())
	if err != nil {
		h.logger.Warn("backend health check failed", "error", err)
		resp.Status = "degraded"
		resp.Backend = "unreachable"
		resp.Error = gateway.ErrorMessage(err)
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Backend = health.Status
	writeJSON(w, http.StatusOK, resp)
}
