package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidfriends/uploader/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Ping checks the upload ledger database when one is configured.
	Ping func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	payload := map[string]string{
		"status": "ok",
	}

	if h.Ping != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Warn("ledger database unreachable", "error", err)
			payload["status"] = "degraded"
			payload["ledger"] = "unreachable"
			respondJSON(ctx, w, http.StatusServiceUnavailable, payload)
			return
		}
		payload["ledger"] = "ok"
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}
