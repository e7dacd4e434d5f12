package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/yoin/internal/client/storage"
	"github.com/iudanet/yoin/internal/document"
)

const (
	keyClientID          = "client_id"
	keyLastSyncTimestamp = "last_sync_timestamp"
)

// SaveClientID сохраняет идентификатор реплики
func (s *Storage) SaveClientID(ctx context.Context, id document.ClientID) error {
	return s.putUint64(keyClientID, uint64(id))
}

// GetClientID returns the saved replica id, 0 if none was saved yet
func (s *Storage) GetClientID(ctx context.Context) (document.ClientID, error) {
	v, err := s.getUint64(keyClientID)
	if err != nil {
		return 0, fmt.Errorf("failed to get client id: %w", err)
	}
	return document.ClientID(v), nil
}

// SaveLastSyncTimestamp saves the timestamp of the last successful sync
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error {
	return s.putUint64(keyLastSyncTimestamp, uint64(timestamp))
}

// GetLastSyncTimestamp retrieves the timestamp of the last successful sync
// Returns 0 if no sync has been performed yet
func (s *Storage) GetLastSyncTimestamp(ctx context.Context) (int64, error) {
	v, err := s.getUint64(keyLastSyncTimestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	return int64(v), nil
}

func (s *Storage) putUint64(key string, v uint64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, v)

		if err := bucket.Put([]byte(key), buf); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

// getUint64 возвращает 0, если ключ еще не записан
func (s *Storage) getUint64(key string) (uint64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var v uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		raw := bucket.Get([]byte(key))
		if len(raw) != 8 {
			return nil
		}
		v = binary.BigEndian.Uint64(raw)
		return nil
	})
	return v, err
}
