package storage

import (
	"context"

	"github.com/iudanet/yoin/internal/models"
)

// SnapshotStorage defines interface for room snapshot persistence
type SnapshotStorage interface {
	// SaveSnapshot creates or replaces the snapshot of a room.
	// Returns false if stored snapshot already has the same checksum.
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) (bool, error)

	// GetSnapshot retrieves the snapshot of a room.
	// Returns ErrSnapshotNotFound if room was never saved,
	// ErrCorruptSnapshot if stored update fails checksum verification.
	GetSnapshot(ctx context.Context, roomID string) (*models.Snapshot, error)

	// ListRooms returns all stored rooms ordered by room id
	ListRooms(ctx context.Context) ([]*models.RoomInfo, error)

	// DeleteSnapshot removes the snapshot of a room.
	// Returns ErrSnapshotNotFound if room does not exist
	DeleteSnapshot(ctx context.Context, roomID string) error
}
