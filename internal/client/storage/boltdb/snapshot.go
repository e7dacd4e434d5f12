package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/yoin/internal/client/storage"
	"github.com/iudanet/yoin/internal/models"
)

// SaveSnapshot stores or replaces the snapshot of a room
func (s *Storage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		return bucket.Put([]byte(snapshot.RoomID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot retrieves the snapshot of a room
func (s *Storage) LoadSnapshot(ctx context.Context, roomID string) (*models.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var snapshot *models.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}

		data := bucket.Get([]byte(roomID))
		if data == nil {
			return storage.ErrSnapshotNotFound
		}

		// data валидна только внутри транзакции, Unmarshal копирует
		snapshot = &models.Snapshot{}
		if err := json.Unmarshal(data, snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !snapshot.Verify() {
		return nil, fmt.Errorf("room %q: %w", roomID, storage.ErrCorruptSnapshot)
	}

	return snapshot, nil
}

// DeleteSnapshot removes the snapshot of a room
func (s *Storage) DeleteSnapshot(ctx context.Context, roomID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		return bucket.Delete([]byte(roomID))
	})
}

// QuarantineSnapshot moves the raw snapshot bytes of a room into the quarantine bucket
func (s *Storage) QuarantineSnapshot(ctx context.Context, roomID string) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	key := fmt.Sprintf("%s.%d", roomID, time.Now().UnixNano())
	err := s.db.Update(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		if snapshots == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		quarantine := tx.Bucket(bucketQuarantine)
		if quarantine == nil {
			return fmt.Errorf("quarantine bucket not found")
		}

		data := snapshots.Get([]byte(roomID))
		if data == nil {
			return storage.ErrSnapshotNotFound
		}
		if err := quarantine.Put([]byte(key), data); err != nil {
			return err
		}
		return snapshots.Delete([]byte(roomID))
	})
	if err != nil {
		return "", err
	}

	return key, nil
}
