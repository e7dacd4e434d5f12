package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/internal/server/storage"
)

func TestNew_Migrations(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	var name string
	err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'room_snapshots'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "room_snapshots", name)
}

func TestSnapshotStorage_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	snap := models.NewSnapshot("room-1", []byte{1, 2, 3, 4}, []byte{1, 10}, 3)

	saved, err := s.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, saved)

	got, err := s.GetSnapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, snap.RoomID, got.RoomID)
	assert.Equal(t, snap.Update, got.Update)
	assert.Equal(t, snap.StateVector, got.StateVector)
	assert.Equal(t, snap.Checksum, got.Checksum)
	assert.Equal(t, int64(3), got.Updates)
	assert.WithinDuration(t, snap.UpdatedAt, got.UpdatedAt, time.Millisecond)
}

func TestSnapshotStorage_SaveUnchanged(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		snap      *models.Snapshot
		name      string
		wantSaved bool
	}{
		{name: "first save", snap: models.NewSnapshot("r", []byte("v1"), nil, 1), wantSaved: true},
		{name: "same content", snap: models.NewSnapshot("r", []byte("v1"), nil, 2), wantSaved: false},
		{name: "new content", snap: models.NewSnapshot("r", []byte("v2"), nil, 3), wantSaved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved, err := s.SaveSnapshot(ctx, tt.snap)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSaved, saved)
		})
	}

	got, err := s.GetSnapshot(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Update)
}

func TestSnapshotStorage_CorruptChecksum(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// сумма со старшим битом не совпадает с данными
	snap := models.NewSnapshot("r", []byte("payload"), nil, 1)
	snap.Checksum = 1<<63 | 12345
	_, err := s.DB().Exec(`INSERT INTO room_snapshots (room_id, update_data, state_vector, checksum, updates, created_at, updated_at) VALUES (?, ?, ?, ?, 0, 0, 0)`,
		snap.RoomID, snap.Update, []byte{}, int64(snap.Checksum))
	require.NoError(t, err)

	_, err = s.GetSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrCorruptSnapshot)
}

func TestSnapshotStorage_GetNotFound(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func TestSnapshotStorage_ListRooms(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	for _, id := range []string{"beta", "alpha"} {
		_, err := s.SaveSnapshot(ctx, models.NewSnapshot(id, []byte(id), nil, 1))
		require.NoError(t, err)
	}

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "alpha", rooms[0].RoomID)
	assert.Equal(t, 5, rooms[0].Size)
	assert.Equal(t, "beta", rooms[1].RoomID)
}

func TestSnapshotStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.SaveSnapshot(ctx, models.NewSnapshot("r", []byte("x"), nil, 1))
	require.NoError(t, err)

	require.NoError(t, s.DeleteSnapshot(ctx, "r"))

	_, err = s.GetSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	err = s.DeleteSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:", nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}
