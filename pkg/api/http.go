package api

import "time"

// ErrorResponse представляет ответ HTTP API с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// HealthResponse - ответ GET /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Rooms   int    `json:"rooms"`
	Peers   int    `json:"peers"`
}

// RoomResponse - элемент ответа GET /api/v1/rooms.
// Live означает, что комната сейчас открыта на сервере.
type RoomResponse struct {
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	RoomID    string     `json:"room_id"`
	Size      int        `json:"size"`
	Peers     int        `json:"peers"`
	Live      bool       `json:"live"`
}
