package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/yoin/internal/document"
	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/internal/server/hub"
	"github.com/iudanet/yoin/internal/server/storage/sqlite"
	"github.com/iudanet/yoin/pkg/api"
)

func setupRoomHandler(t *testing.T) (*RoomHandler, *hub.Hub, *sqlite.Storage) {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:", setupTestLogger())
	require.NoError(t, err)

	h := hub.New(store, hub.WithLogger(setupTestLogger()))
	t.Cleanup(func() {
		_ = h.Close(context.Background())
		_ = store.Close()
	})
	return NewRoomHandler(h, store, setupTestLogger()), h, store
}

func newMux(rh *RoomHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /room/{id}", rh.ServeRoom)
	mux.HandleFunc("GET /ws", rh.ServeQuery)
	mux.HandleFunc("GET /api/v1/rooms", rh.List)
	return mux
}

func TestRoomHandler_Rejects(t *testing.T) {
	rh, h, _ := setupRoomHandler(t)
	mux := newMux(rh)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "invalid room id", target: "/room/bad%20room", wantStatus: http.StatusBadRequest},
		{name: "too long room id", target: "/room/" + strings.Repeat("a", 65), wantStatus: http.StatusBadRequest},
		{name: "plain http", target: "/room/doc", wantStatus: http.StatusUpgradeRequired},
		{name: "plain http on query route", target: "/ws?room=doc", wantStatus: http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}

	// отклоненные запросы комнат не создают
	assert.Empty(t, h.Stats())
}

func TestRoomHandler_QueryRouteDefaultsRoom(t *testing.T) {
	rh, h, _ := setupRoomHandler(t)
	srv := httptest.NewServer(newMux(rh))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, api.EncodeMessage(api.MsgSyncStep1, document.EmptyStateVector())))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, byte(api.MsgSyncStep2), frame[0])

	stats := h.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, DefaultRoom, stats[0].ID)
}

func TestRoomHandler_ClosedHub(t *testing.T) {
	rh, h, _ := setupRoomHandler(t)
	require.NoError(t, h.Close(context.Background()))

	srv := httptest.NewServer(newMux(rh))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/room/doc", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRoomHandler_List(t *testing.T) {
	ctx := context.Background()
	rh, h, store := setupRoomHandler(t)

	_, err := store.SaveSnapshot(ctx, models.NewSnapshot("stored", []byte{1, 2, 3}, []byte{1}, 1))
	require.NoError(t, err)
	_, err = h.Room(ctx, "live")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	rh.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rooms []api.RoomResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rooms))
	require.Len(t, rooms, 2)

	assert.Equal(t, "stored", rooms[0].RoomID)
	assert.Equal(t, 3, rooms[0].Size)
	assert.False(t, rooms[0].Live)
	assert.NotNil(t, rooms[0].UpdatedAt)

	assert.Equal(t, "live", rooms[1].RoomID)
	assert.True(t, rooms[1].Live)
	assert.Nil(t, rooms[1].UpdatedAt)
}
