package handlers

import (
	"context"
	"net/http"
	"time"

	"intake-service/internal/common/logger"
	"intake-service/internal/http/response"
)

// Check is one readiness dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	Handler
	checks  []Check
	timeout time.Duration
}

func NewHealthHandler(checks []Check, log logger.Logger) *HealthHandler {
	return &HealthHandler{Handler: newHandler(log, "health-handler"), checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports every dependency and fails with 503 if any is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", map[string]interface{}{"dependency": c.Name, "error": err})
			deps[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	response.JSON(w, status, map[string]interface{}{"status": state, "dependencies": deps})
}
