package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/internal/server/hub"
	"github.com/iudanet/yoin/internal/server/middleware"
	"github.com/iudanet/yoin/internal/validation"
	"github.com/iudanet/yoin/pkg/api"
)

// DefaultRoom используется, если ?room= не указан
const DefaultRoom = "default"

// RoomHub - то, что нужно обработчикам от hub.Hub
type RoomHub interface {
	Room(ctx context.Context, id string) (*hub.Room, error)
	Stats() []hub.RoomStats
}

// RoomLister перечисляет сохраненные комнаты
type RoomLister interface {
	ListRooms(ctx context.Context) ([]*models.RoomInfo, error)
}

// RoomHandler подключает websocket клиентов к комнатам
type RoomHandler struct {
	hub      RoomHub
	rooms    RoomLister
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewRoomHandler создает handler комнат
func NewRoomHandler(h RoomHub, rooms RoomLister, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		hub:    h,
		rooms:  rooms,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// клиенты - не только браузеры, Origin не проверяется
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeRoom обрабатывает GET /room/{id}
func (h *RoomHandler) ServeRoom(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, r.PathValue("id"))
}

// ServeQuery обрабатывает GET /ws?room=id
func (h *RoomHandler) ServeQuery(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}
	h.serve(w, r, roomID)
}

func (h *RoomHandler) serve(w http.ResponseWriter, r *http.Request, roomID string) {
	if err := validation.ValidateRoomID(roomID); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid room id", err.Error())
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		middleware.WriteError(w, http.StatusUpgradeRequired, "expected websocket upgrade", "")
		return
	}

	// комната загружается до upgrade, чтобы ошибку хранилища отдать HTTP статусом
	room, err := h.hub.Room(r.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hub.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("failed to open room", slog.String("room_id", roomID), slog.Any("error", err))
		middleware.WriteError(w, status, "room unavailable", "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", slog.String("room_id", roomID), slog.Any("error", err))
		return
	}

	if err := room.Serve(r.Context(), conn); err != nil {
		h.logger.Debug("peer connection ended", slog.String("room_id", roomID), slog.Any("error", err))
	}
}

// List обрабатывает GET /api/v1/rooms: сохраненные и активные комнаты
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	stored, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("failed to list rooms", slog.Any("error", err))
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list rooms", "")
		return
	}

	byID := make(map[string]*api.RoomResponse, len(stored))
	resp := make([]*api.RoomResponse, 0, len(stored))
	for _, info := range stored {
		updatedAt := info.UpdatedAt
		item := &api.RoomResponse{RoomID: info.RoomID, Size: info.Size, UpdatedAt: &updatedAt}
		byID[info.RoomID] = item
		resp = append(resp, item)
	}

	for _, live := range h.hub.Stats() {
		item, ok := byID[live.ID]
		if !ok {
			item = &api.RoomResponse{RoomID: live.ID}
			resp = append(resp, item)
		}
		item.Live = true
		item.Peers = live.Peers
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}
