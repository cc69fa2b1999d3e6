package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/scenesync/internal/relay"
	"github.com/iudanet/scenesync/pkg/api"
)

// StatsProvider reports the hub load.
type StatsProvider interface {
	Stats() relay.Stats
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	stats   StatsProvider
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, version string, stats StatsProvider) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		stats:   stats,
		version: version,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		resp.Rooms = stats.Rooms
		resp.Peers = stats.Peers
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
