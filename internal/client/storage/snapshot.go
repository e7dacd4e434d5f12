package storage

import (
	"context"

	"github.com/iudanet/yoin/internal/models"
)

//go:generate moq -out snapshotstorage_mock.go . SnapshotStorage

// SnapshotStorage хранит локальные снимки документов по комнатам
type SnapshotStorage interface {
	// SaveSnapshot stores or replaces the snapshot of a room
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error

	// LoadSnapshot retrieves the snapshot of a room
	// Returns ErrSnapshotNotFound if room was never saved
	LoadSnapshot(ctx context.Context, roomID string) (*models.Snapshot, error)

	// DeleteSnapshot removes the snapshot of a room, missing rooms are ignored
	DeleteSnapshot(ctx context.Context, roomID string) error

	// QuarantineSnapshot переносит сохраненные байты снимка комнаты в карантин,
	// не проверяя их, и возвращает ключ копии. Снимок комнаты после этого отсутствует.
	// Returns ErrSnapshotNotFound if room was never saved
	QuarantineSnapshot(ctx context.Context, roomID string) (string, error)
}
