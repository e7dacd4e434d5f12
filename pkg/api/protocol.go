// Package api описывает бинарный протокол синхронизации между клиентом и сервером.
package api

import (
	"errors"
	"fmt"
)

// MessageType - первый байт каждого кадра websocket.
type MessageType byte

const (
	MsgSyncStep1      MessageType = 0 // state vector отправителя
	MsgSyncStep2      MessageType = 1 // обновление документа
	MsgSyncStep1Reply MessageType = 2 // ответный state vector
	MsgAwareness      MessageType = 3 // JSON AwarenessState, пересылается без разбора
	MsgJoinRoom       MessageType = 4 // идентификатор комнаты
)

// ErrEmptyFrame возвращается при декодировании кадра нулевой длины
var ErrEmptyFrame = errors.New("empty frame")

// String returns the message type name used in logs
func (t MessageType) String() string {
	switch t {
	case MsgSyncStep1:
		return "sync_step_1"
	case MsgSyncStep2:
		return "sync_step_2"
	case MsgSyncStep1Reply:
		return "sync_step_1_reply"
	case MsgAwareness:
		return "awareness"
	case MsgJoinRoom:
		return "join_room"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Known reports whether t is one of the protocol message types
func (t MessageType) Known() bool {
	return t <= MsgJoinRoom
}

// Message - декодированный кадр протокола.
type Message struct {
	Payload []byte
	Type    MessageType
}

// EncodeMessage собирает кадр: тип + payload.
func EncodeMessage(t MessageType, payload []byte) []byte {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(t)
	copy(frame[1:], payload)
	return frame
}

// DecodeMessage разбирает кадр. Payload ссылается на память frame.
// Неизвестный тип не является ошибкой: решение принимает получатель.
func DecodeMessage(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return Message{}, ErrEmptyFrame
	}
	return Message{Type: MessageType(frame[0]), Payload: frame[1:]}, nil
}
