package boltdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/yoin/internal/client/storage"
	"github.com/iudanet/yoin/internal/models"
)

func createTestSnapshotStorage(t *testing.T) *Storage {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStorage_SaveLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	store := createTestSnapshotStorage(t)

	_, err := store.LoadSnapshot(ctx, "room-1")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	snap := models.NewSnapshot("room-1", []byte{1, 2, 3}, []byte{1}, 4)
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	got, err := store.LoadSnapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Update, got.Update)
	assert.Equal(t, snap.StateVector, got.StateVector)
	assert.Equal(t, snap.Checksum, got.Checksum)
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))

	// перезапись
	next := models.NewSnapshot("room-1", []byte{9}, nil, 5)
	require.NoError(t, store.SaveSnapshot(ctx, next))

	got, err = store.LoadSnapshot(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got.Update)
}

func TestStorage_SnapshotsPerRoom(t *testing.T) {
	ctx := context.Background()
	store := createTestSnapshotStorage(t)

	require.NoError(t, store.SaveSnapshot(ctx, models.NewSnapshot("a", []byte("a"), nil, 1)))
	require.NoError(t, store.SaveSnapshot(ctx, models.NewSnapshot("b", []byte("b"), nil, 1)))

	require.NoError(t, store.DeleteSnapshot(ctx, "a"))
	require.NoError(t, store.DeleteSnapshot(ctx, "missing"))

	_, err := store.LoadSnapshot(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	got, err := store.LoadSnapshot(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got.Update)
}

func TestStorage_LoadCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := createTestSnapshotStorage(t)

	snap := models.NewSnapshot("r", []byte("data"), nil, 1)
	snap.Checksum++
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	err = store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte("r"), raw)
	})
	require.NoError(t, err)

	_, err = store.LoadSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrCorruptSnapshot)
}

func TestStorage_QuarantineSnapshot(t *testing.T) {
	ctx := context.Background()
	store := createTestSnapshotStorage(t)

	_, err := store.QuarantineSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	// байты переносятся как есть, даже с неверной контрольной суммой
	snap := models.NewSnapshot("r", []byte("data"), nil, 1)
	snap.Checksum++
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte("r"), raw)
	}))

	key, err := store.QuarantineSnapshot(ctx, "r")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "r."), key)

	_, err = store.LoadSnapshot(ctx, "r")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	// новый снимок комнаты не затирает карантин
	require.NoError(t, store.SaveSnapshot(ctx, models.NewSnapshot("r", []byte("fresh"), nil, 2)))
	require.NoError(t, store.db.View(func(tx *bbolt.Tx) error {
		assert.Equal(t, raw, tx.Bucket(bucketQuarantine).Get([]byte(key)))
		return nil
	}))
}

func TestStorage_Snapshot_ClosedDB(t *testing.T) {
	ctx := context.Background()
	store := createTestSnapshotStorage(t)
	require.NoError(t, store.Close())

	tests := []struct {
		call func() error
		name string
	}{
		{name: "save", call: func() error { return store.SaveSnapshot(ctx, models.NewSnapshot("r", nil, nil, 0)) }},
		{name: "load", call: func() error { _, err := store.LoadSnapshot(ctx, "r"); return err }},
		{name: "delete", call: func() error { return store.DeleteSnapshot(ctx, "r") }},
		{name: "quarantine", call: func() error { _, err := store.QuarantineSnapshot(ctx, "r"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), storage.ErrStorageClosed)
		})
	}
}
