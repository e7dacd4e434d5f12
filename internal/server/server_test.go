package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iudanet/yoin/internal/config"
	"github.com/iudanet/yoin/internal/document"
	"github.com/iudanet/yoin/internal/server/storage/sqlite"
	"github.com/iudanet/yoin/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	ctx := context.Background()

	cfg := config.DefaultServer()
	cfg.DBPath = filepath.Join(t.TempDir(), "server.db")
	cfg.ShutdownTimeout = 5 * time.Second

	srv, err := New(ctx, cfg, "test", testLogger())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := ln.Addr().String()

	runCtx, cancel := context.WithCancel(ctx)
	errC := make(chan error, 1)
	go func() {
		errC <- srv.Serve(runCtx, ln)
	}()

	// health
	resp, err := http.Get("http://" + base + "/api/v1/health")
	require.NoError(t, err)
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	// правка через websocket
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/room/notes", nil)
	require.NoError(t, err)

	d := document.New(document.WithClientID(1))
	update, err := d.InsertText(ctx, "content", 0, "persist me")
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, api.EncodeMessage(api.MsgSyncStep2, update)))

	// ответ на SyncStep1 гарантирует, что обновление уже применено
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, api.EncodeMessage(api.MsgSyncStep1, document.EmptyStateVector())))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, byte(api.MsgSyncStep2), frame[0])

	cancel()
	select {
	case err := <-errC:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	_ = conn.Close()
	http.DefaultClient.CloseIdleConnections()

	// комната сохранена при остановке
	store, err := sqlite.New(ctx, cfg.DBPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.GetSnapshot(ctx, "notes")
	require.NoError(t, err)

	restored := document.New()
	require.NoError(t, restored.ApplyUpdate(ctx, snap.Update, document.OriginRemote))
	text, err := restored.ReadText(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, "persist me", text)

	goleak.VerifyNone(t, ignore)
}

func TestServer_RateLimit(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultServer()
	cfg.DBPath = filepath.Join(t.TempDir(), "server.db")
	cfg.RateLimit = 1

	srv, err := New(ctx, cfg, "test", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.shutdown() })

	h := srv.Handler()

	first := httpRecorder(h, "/api/v1/rooms")
	assert.Equal(t, http.StatusOK, first)

	second := httpRecorder(h, "/api/v1/rooms")
	assert.Equal(t, http.StatusTooManyRequests, second)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.CompactionThreshold = 0

	_, err := New(context.Background(), cfg, "test", testLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}
