package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/yoin/internal/server/hub"
	"github.com/iudanet/yoin/pkg/api"
)

// StatsProvider отдает состояние живых комнат
type StatsProvider interface {
	Stats() []hub.RoomStats
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	stats   StatsProvider
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(stats StatsProvider, version string, logger *slog.Logger) *HealthHandler {
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
	for _, room := range h.stats.Stats() {
		resp.Rooms++
		resp.Peers += room.Peers
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
