package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_SetDeep(t *testing.T) {
	ctx := context.Background()

	t.Run("creates nested maps", func(t *testing.T) {
		d := New()
		update, err := d.SetDeep(ctx, "root", []any{"a", "b", "c"}, 42)
		require.NoError(t, err)
		require.NotEmpty(t, update)

		all, err := d.MapGetAll(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"b":{"c":42}}}`, all)

		// remote replica receives the same structure from the diff
		other := New()
		require.NoError(t, other.ApplyUpdate(ctx, update, OriginRemote))
		remote, err := other.MapGetAll(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, all, remote)
	})

	t.Run("reuses existing maps", func(t *testing.T) {
		d := New()
		_, err := d.SetDeep(ctx, "root", []any{"a", "b", "c"}, 42)
		require.NoError(t, err)
		_, err = d.SetDeep(ctx, "root", []any{"a", "b", "d"}, "x")
		require.NoError(t, err)
		_, err = d.SetDeep(ctx, "root", []any{"a", "e"}, true)
		require.NoError(t, err)

		all, err := d.MapGetAll(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"b":{"c":42,"d":"x"},"e":true}}`, all)

		v, err := d.MapGet(ctx, "root", "a")
		require.NoError(t, err)
		assert.Equal(t, `{"b":{"c":42,"d":"x"},"e":true}`, v)
	})

	t.Run("single segment", func(t *testing.T) {
		d := New()
		_, err := d.SetDeep(ctx, "root", []any{"k"}, 1.5)
		require.NoError(t, err)
		v, err := d.MapGet(ctx, "root", "k")
		require.NoError(t, err)
		assert.Equal(t, "1.5", v)
	})

	t.Run("replaces scalar on the path", func(t *testing.T) {
		d := New()
		_, err := d.MapSet(ctx, "root", "a", "scalar")
		require.NoError(t, err)
		_, err = d.SetDeep(ctx, "root", []any{"a", "b"}, 1)
		require.NoError(t, err)

		all, err := d.MapGetAll(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"b":1}}`, all)
	})

	t.Run("strict paths keep scalar", func(t *testing.T) {
		d := New(WithStrictPaths())
		_, err := d.SetDeep(ctx, "root", []any{"x", "y"}, 1)
		require.NoError(t, err)
		_, err = d.SetDeep(ctx, "root", []any{"x", "y", "z"}, 1)
		assert.ErrorIs(t, err, ErrPath)

		all, err := d.MapGetAll(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, `{"x":{"y":1}}`, all)
	})
}

func TestDocument_SetDeepErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		value   any
		wantErr error
		name    string
		root    string
		path    []any
	}{
		{name: "empty path", root: "root", path: []any{}, value: 1, wantErr: ErrPath},
		{name: "nil path", root: "root", path: nil, value: 1, wantErr: ErrPath},
		{name: "non-string segment", root: "root", path: []any{"a", 7}, value: 1, wantErr: ErrPath},
		{name: "non-scalar value", root: "root", path: []any{"a"}, value: []string{"x"}, wantErr: ErrType},
		{name: "nil value", root: "root", path: []any{"a", "b"}, value: nil, wantErr: ErrType},
		{name: "root is text", root: "content", path: []any{"a"}, value: 1, wantErr: ErrType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			_, err := d.InsertText(ctx, "content", 0, "x")
			require.NoError(t, err)
			before, err := d.FullExport(ctx)
			require.NoError(t, err)

			update, err := d.SetDeep(ctx, tt.root, tt.path, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, update)

			after, err := d.FullExport(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}
