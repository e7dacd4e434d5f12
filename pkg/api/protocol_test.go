package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		typ     MessageType
	}{
		{name: "sync step 1", typ: MsgSyncStep1, payload: []byte{0x01}},
		{name: "sync step 2", typ: MsgSyncStep2, payload: []byte{0x01, 0x0a, 0x02, 0x08, 0x01}},
		{name: "reply", typ: MsgSyncStep1Reply, payload: []byte{0x01}},
		{name: "awareness", typ: MsgAwareness, payload: []byte(`{"client_id":"x"}`)},
		{name: "join room", typ: MsgJoinRoom, payload: []byte("room-1")},
		{name: "empty payload", typ: MsgSyncStep2, payload: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeMessage(tt.typ, tt.payload)
			require.Len(t, frame, len(tt.payload)+1)
			assert.Equal(t, byte(tt.typ), frame[0])

			msg, err := DecodeMessage(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, msg.Type)
			assert.Equal(t, tt.payload, msg.Payload)
		})
	}
}

func TestDecodeMessage_Empty(t *testing.T) {
	_, err := DecodeMessage(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)
	_, err = DecodeMessage([]byte{})
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestMessageType(t *testing.T) {
	assert.True(t, MsgJoinRoom.Known())
	assert.False(t, MessageType(9).Known())
	assert.Equal(t, "sync_step_2", MsgSyncStep2.String())
	assert.Equal(t, "unknown(9)", MessageType(9).String())

	msg, err := DecodeMessage([]byte{9, 1, 2})
	require.NoError(t, err)
	assert.False(t, msg.Type.Known())
}

func TestAwareness(t *testing.T) {
	x := 10.5
	state := AwarenessState{ClientID: "c1", Name: "Ann", Color: "#f00", CursorX: &x, Timestamp: 1700000000000}

	frame, err := EncodeAwareness(state)
	require.NoError(t, err)
	msg, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, MsgAwareness, msg.Type)

	got, err := DecodeAwareness(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, state, got)

	_, err = DecodeAwareness([]byte("not json"))
	assert.Error(t, err)
	_, err = DecodeAwareness([]byte(`{"name":"anon"}`))
	assert.Error(t, err)
}
