package storage

import "errors"

// Common client storage errors
var (
	// ErrSnapshotNotFound indicates that no snapshot was saved for the room
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCorruptSnapshot indicates that stored update does not match its checksum
	ErrCorruptSnapshot = errors.New("snapshot checksum mismatch")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
