package document

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Text(t *testing.T) {
	ctx := context.Background()
	d := New()
	mirror := New()

	apply := func(update []byte) {
		t.Helper()
		if update != nil {
			require.NoError(t, mirror.ApplyUpdate(ctx, update, OriginRemote))
		}
	}

	update, err := d.InsertText(ctx, "content", 0, "hello")
	require.NoError(t, err)
	apply(update)
	update, err = d.InsertText(ctx, "content", 5, " world")
	require.NoError(t, err)
	apply(update)
	update, err = d.DeleteText(ctx, "content", 0, 6)
	require.NoError(t, err)
	apply(update)

	text, err := d.ReadText(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, "world", text)

	// каждый diff содержит ровно изменения своего вызова
	mirrorText, err := mirror.ReadText(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, text, mirrorText)

	update, err = d.DeleteText(ctx, "content", 2, 0)
	require.NoError(t, err)
	assert.Nil(t, update)

	empty, err := d.ReadText(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDocument_TextErrors(t *testing.T) {
	ctx := context.Background()
	d := New()
	_, err := d.InsertText(ctx, "content", 0, "abc")
	require.NoError(t, err)
	_, err = d.MapSet(ctx, "root", "k", 1)
	require.NoError(t, err)

	tests := []struct {
		call    func() ([]byte, error)
		wantErr error
		name    string
	}{
		{
			name:    "insert past end",
			call:    func() ([]byte, error) { return d.InsertText(ctx, "content", 4, "x") },
			wantErr: ErrRange,
		},
		{
			name:    "insert negative",
			call:    func() ([]byte, error) { return d.InsertText(ctx, "content", -1, "x") },
			wantErr: ErrRange,
		},
		{
			name:    "delete past end",
			call:    func() ([]byte, error) { return d.DeleteText(ctx, "content", 1, 3) },
			wantErr: ErrRange,
		},
		{
			name:    "text on a map",
			call:    func() ([]byte, error) { return d.InsertText(ctx, "root", 0, "x") },
			wantErr: ErrType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := tt.call()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, update)

			text, err := d.ReadText(ctx, "content")
			require.NoError(t, err)
			assert.Equal(t, "abc", text)
		})
	}
}

func TestDocument_Map(t *testing.T) {
	ctx := context.Background()
	d := New()

	all, err := d.MapGetAll(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "{}", all)

	v, err := d.MapGet(ctx, "root", "missing")
	require.NoError(t, err)
	assert.Equal(t, "null", v)

	_, err = d.MapSet(ctx, "root", "title", "Draft \"1\"")
	require.NoError(t, err)
	_, err = d.MapSet(ctx, "root", "count", 3)
	require.NoError(t, err)
	_, err = d.MapSet(ctx, "root", "ratio", float32(0.5))
	require.NoError(t, err)
	_, err = d.MapSet(ctx, "root", "done", false)
	require.NoError(t, err)

	v, err = d.MapGet(ctx, "root", "title")
	require.NoError(t, err)
	assert.Equal(t, `"Draft \"1\""`, v)

	all, err = d.MapGetAll(ctx, "root")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3,"done":false,"ratio":0.5,"title":"Draft \"1\""}`, all)
	assert.Equal(t, `{"count":3,"done":false,"ratio":0.5,"title":"Draft \"1\""}`, all)

	update, err := d.MapDelete(ctx, "root", "count")
	require.NoError(t, err)
	assert.NotNil(t, update)
	update, err = d.MapDelete(ctx, "root", "count")
	require.NoError(t, err)
	assert.Nil(t, update)

	v, err = d.MapGet(ctx, "root", "count")
	require.NoError(t, err)
	assert.Equal(t, "null", v)
}

func TestDocument_MapSetRejects(t *testing.T) {
	ctx := context.Background()
	d := New()

	values := []any{nil, []int{1}, map[string]any{}, struct{}{}, math.NaN(), math.Inf(1)}
	for _, v := range values {
		update, err := d.MapSet(ctx, "root", "k", v)
		assert.ErrorIs(t, err, ErrType, "%v", v)
		assert.Nil(t, update)
	}

	all, err := d.MapGetAll(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "{}", all)
}

func TestDocument_Array(t *testing.T) {
	ctx := context.Background()
	d := New()

	all, err := d.ArrayGetAll(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, "[]", all)

	for _, v := range []any{"one", 2, true, uint8(4)} {
		update, err := d.ArrayPush(ctx, "items", v)
		require.NoError(t, err)
		assert.NotEmpty(t, update)
	}

	all, err = d.ArrayGetAll(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, `["one",2,true,4]`, all)

	tests := []struct {
		name     string
		expected string
		index    int
	}{
		{name: "first", index: 0, expected: `"one"`},
		{name: "number", index: 1, expected: "2"},
		{name: "last", index: 3, expected: "4"},
		{name: "past end", index: 4, expected: "null"},
		{name: "negative", index: -1, expected: "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.ArrayGet(ctx, "items", tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err = d.ArrayInsert(ctx, "items", 1, "between")
	require.NoError(t, err)
	_, err = d.ArrayDelete(ctx, "items", 3, 2)
	require.NoError(t, err)
	all, err = d.ArrayGetAll(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, `["one","between",2]`, all)

	_, err = d.ArrayDelete(ctx, "items", 2, 5)
	assert.ErrorIs(t, err, ErrRange)
	_, err = d.ArrayPush(ctx, "items", nil)
	assert.ErrorIs(t, err, ErrType)
	_, err = d.ArrayGet(ctx, "content", 0)
	require.NoError(t, err)
	_, err = d.ReadText(ctx, "items")
	assert.ErrorIs(t, err, ErrType)
}
