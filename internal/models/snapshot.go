package models

import (
	"bytes"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Snapshot хранит полное состояние документа комнаты.
// Update содержит FullExport документа, StateVector нужен для быстрого
// ответа на SyncStep1 без загрузки документа.
type Snapshot struct {
	UpdatedAt   time.Time `json:"updated_at"`   // UpdatedAt время последнего сохранения
	RoomID      string    `json:"room_id"`      // RoomID идентификатор комнаты
	Update      []byte    `json:"update"`       // Update полный экспорт документа
	StateVector []byte    `json:"state_vector"` // StateVector закодированный вектор состояния
	Checksum    uint64    `json:"checksum"`     // Checksum xxhash64 от Update
	Updates     int64     `json:"updates"`      // Updates число обновлений, вошедших в снимок
}

// NewSnapshot собирает снимок и считает контрольную сумму.
func NewSnapshot(roomID string, update, stateVector []byte, updates int64) *Snapshot {
	return &Snapshot{
		RoomID:      roomID,
		Update:      update,
		StateVector: stateVector,
		Checksum:    Checksum(update),
		Updates:     updates,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Checksum возвращает xxhash64 от данных.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Verify проверяет, что Update соответствует Checksum.
func (s *Snapshot) Verify() bool {
	return Checksum(s.Update) == s.Checksum
}

// SameContent сообщает, совпадает ли содержимое двух снимков.
func (s *Snapshot) SameContent(other *Snapshot) bool {
	if other == nil {
		return false
	}
	return s.Checksum == other.Checksum && bytes.Equal(s.Update, other.Update)
}

// Clone создает глубокую копию снимка
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		RoomID:      s.RoomID,
		Update:      bytes.Clone(s.Update),
		StateVector: bytes.Clone(s.StateVector),
		Checksum:    s.Checksum,
		Updates:     s.Updates,
		UpdatedAt:   s.UpdatedAt,
	}
}

// RoomInfo краткие сведения о комнате для списков.
type RoomInfo struct {
	UpdatedAt time.Time `json:"updated_at"`
	RoomID    string    `json:"room_id"`
	Size      int       `json:"size"`
}
