package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/internal/server/storage"
)

// SaveSnapshot creates or replaces the snapshot of a room.
// Returns false if stored snapshot already has the same checksum.
func (s *Storage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) (bool, error) {
	var stored int64
	err := s.db.QueryRowContext(ctx,
		`SELECT checksum FROM room_snapshots WHERE room_id = ?`,
		snapshot.RoomID,
	).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("failed to check existing snapshot: %w", err)
	case uint64(stored) == snapshot.Checksum:
		return false, nil
	}

	updatedAt := snapshot.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO room_snapshots (
			room_id, update_data, state_vector, checksum, updates,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			update_data = excluded.update_data,
			state_vector = excluded.state_vector,
			checksum = excluded.checksum,
			updates = excluded.updates,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		snapshot.RoomID,
		nonNil(snapshot.Update),
		nonNil(snapshot.StateVector),
		int64(snapshot.Checksum),
		snapshot.Updates,
		updatedAt.UnixMilli(),
		updatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Debug("snapshot saved",
		slog.String("room", snapshot.RoomID),
		slog.Int("size", len(snapshot.Update)),
	)
	return true, nil
}

// GetSnapshot retrieves the snapshot of a room
func (s *Storage) GetSnapshot(ctx context.Context, roomID string) (*models.Snapshot, error) {
	query := `
		SELECT room_id, update_data, state_vector, checksum, updates, updated_at
		FROM room_snapshots
		WHERE room_id = ?
	`

	snapshot := &models.Snapshot{}
	var checksum, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, roomID).Scan(
		&snapshot.RoomID,
		&snapshot.Update,
		&snapshot.StateVector,
		&checksum,
		&snapshot.Updates,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.Checksum = uint64(checksum)
	snapshot.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if !snapshot.Verify() {
		return nil, fmt.Errorf("room %q: %w", roomID, storage.ErrCorruptSnapshot)
	}

	return snapshot, nil
}

// ListRooms returns all stored rooms ordered by room id
func (s *Storage) ListRooms(ctx context.Context) (rooms []*models.RoomInfo, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, length(update_data), updated_at
		FROM room_snapshots
		ORDER BY room_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rooms = make([]*models.RoomInfo, 0)
	for rows.Next() {
		info := &models.RoomInfo{}
		var updatedAt int64
		if err := rows.Scan(&info.RoomID, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		rooms = append(rooms, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rooms, nil
}

// DeleteSnapshot removes the snapshot of a room
func (s *Storage) DeleteSnapshot(ctx context.Context, roomID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM room_snapshots WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrSnapshotNotFound
	}

	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
