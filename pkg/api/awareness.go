package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AwarenessState - эфемерное состояние участника (курсор, имя, цвет).
// Не является частью документа и не сохраняется.
type AwarenessState struct {
	CursorX   *float64 `json:"cursor_x,omitempty"`
	CursorY   *float64 `json:"cursor_y,omitempty"`
	Selection *string  `json:"selection,omitempty"`
	ClientID  string   `json:"client_id"`
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	Timestamp int64    `json:"timestamp"` // unix ms
	Offline   bool     `json:"offline,omitempty"`
}

// EncodeAwareness кодирует состояние в кадр MsgAwareness.
func EncodeAwareness(state AwarenessState) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal awareness state: %w", err)
	}
	return EncodeMessage(MsgAwareness, payload), nil
}

// DecodeAwareness разбирает payload кадра MsgAwareness.
func DecodeAwareness(payload []byte) (AwarenessState, error) {
	var state AwarenessState
	if err := json.Unmarshal(payload, &state); err != nil {
		return AwarenessState{}, fmt.Errorf("failed to unmarshal awareness state: %w", err)
	}
	if state.ClientID == "" {
		return AwarenessState{}, errors.New("awareness state without client_id")
	}
	return state, nil
}
