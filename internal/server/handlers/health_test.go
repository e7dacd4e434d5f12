package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/yoin/internal/server/hub"
	"github.com/iudanet/yoin/pkg/api"
)

type staticStats []hub.RoomStats

func (s staticStats) Stats() []hub.RoomStats { return s }

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name      string
		stats     staticStats
		wantRooms int
		wantPeers int
	}{
		{name: "no rooms", stats: nil},
		{
			name:      "rooms with peers",
			stats:     staticStats{{ID: "a", Peers: 2}, {ID: "b", Peers: 0}, {ID: "c", Peers: 3}},
			wantRooms: 3,
			wantPeers: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.stats, "1.2.3", setupTestLogger())

			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			resp := w.Result()
			defer func() {
				assert.NoError(t, resp.Body.Close())
			}()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var health api.HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
			assert.Equal(t, "ok", health.Status)
			assert.Equal(t, "1.2.3", health.Version)
			assert.Equal(t, tt.wantRooms, health.Rooms)
			assert.Equal(t, tt.wantPeers, health.Peers)
		})
	}
}
