package storage

import "errors"

// Common storage errors
var (
	// ErrSnapshotNotFound indicates that room has no stored snapshot
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCorruptSnapshot indicates that stored update does not match its checksum
	ErrCorruptSnapshot = errors.New("snapshot checksum mismatch")
)
