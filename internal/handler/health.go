package handler

import (
	"log/slog"
	"net/http"
)

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping() error
}

type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleHealthy answers GET /healthy. A nil Pinger skips the database check.
func (h *HealthHandler) HandleHealthy(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "Unhealthy"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "Healthy"})
}
