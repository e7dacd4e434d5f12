package storage

import (
	"context"

	"github.com/iudanet/yoin/internal/document"
)

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveClientID сохраняет идентификатор реплики для повторного использования
	SaveClientID(ctx context.Context, id document.ClientID) error

	// GetClientID returns the saved replica id, 0 if none was saved yet
	GetClientID(ctx context.Context) (document.ClientID, error)

	// SaveLastSyncTimestamp saves the timestamp of the last successful sync
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error

	// GetLastSyncTimestamp retrieves the timestamp of the last successful sync
	// Returns 0 if no sync has been performed yet
	GetLastSyncTimestamp(ctx context.Context) (int64, error)
}
