package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exchange отправляет в to все, чего ему не хватает из from.
func exchange(t *testing.T, from, to *Document) {
	t.Helper()
	ctx := context.Background()
	sv, err := to.StateVector(ctx)
	require.NoError(t, err)
	diff, err := from.DiffSince(ctx, sv)
	require.NoError(t, err)
	require.NoError(t, to.ApplyUpdate(ctx, diff, OriginRemote))
}

type snapshot struct {
	text  string
	root  string
	items string
}

func read(t *testing.T, d *Document) snapshot {
	t.Helper()
	ctx := context.Background()
	text, err := d.ReadText(ctx, "content")
	require.NoError(t, err)
	root, err := d.MapGetAll(ctx, "root")
	require.NoError(t, err)
	items, err := d.ArrayGetAll(ctx, "items")
	require.NoError(t, err)
	return snapshot{text: text, root: root, items: items}
}

func TestSync_Convergence(t *testing.T) {
	ctx := context.Background()

	edits := func(t *testing.T, d *Document, tag string) {
		_, err := d.InsertText(ctx, "content", 0, tag+tag)
		require.NoError(t, err)
		_, err = d.MapSet(ctx, "root", "last", tag)
		require.NoError(t, err)
		_, err = d.MapSet(ctx, "root", tag, true)
		require.NoError(t, err)
		_, err = d.SetDeep(ctx, "root", []any{"nested", tag}, 1)
		require.NoError(t, err)
		_, err = d.ArrayPush(ctx, "items", tag)
		require.NoError(t, err)
	}

	for _, aFirst := range []bool{true, false} {
		a := New(WithClientID(1))
		b := New(WithClientID(2))
		edits(t, a, "a")
		edits(t, b, "b")

		if aFirst {
			exchange(t, a, b)
			exchange(t, b, a)
		} else {
			exchange(t, b, a)
			exchange(t, a, b)
		}

		sa, sb := read(t, a), read(t, b)
		assert.Equal(t, sa, sb)
		assert.Contains(t, sa.text, "aa")
		assert.Contains(t, sa.text, "bb")
		assert.Contains(t, sa.root, `"a":true`)
		assert.Contains(t, sa.root, `"b":true`)

		sva, err := a.StateVector(ctx)
		require.NoError(t, err)
		svb, err := b.StateVector(ctx)
		require.NoError(t, err)
		assert.Equal(t, sva, svb)
	}
}

func TestSync_Idempotence(t *testing.T) {
	ctx := context.Background()
	a := New()
	_, err := a.InsertText(ctx, "content", 0, "hello")
	require.NoError(t, err)
	_, err = a.ArrayPush(ctx, "items", 1)
	require.NoError(t, err)
	update, err := a.FullExport(ctx)
	require.NoError(t, err)

	b := New()
	require.NoError(t, b.ApplyUpdate(ctx, update, OriginRemote))
	once := read(t, b)
	svOnce, err := b.StateVector(ctx)
	require.NoError(t, err)

	require.NoError(t, b.ApplyUpdate(ctx, update, OriginRemote))
	assert.Equal(t, once, read(t, b))
	svTwice, err := b.StateVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, svOnce, svTwice)
}

func TestSync_MissingUpdatesFor(t *testing.T) {
	ctx := context.Background()
	server := New()
	_, err := server.InsertText(ctx, "content", 0, "server text")
	require.NoError(t, err)
	_, err = server.SetDeep(ctx, "root", []any{"a", "b"}, "c")
	require.NoError(t, err)

	client := New()
	empty, err := client.StateVector(ctx)
	require.NoError(t, err)

	missing, err := server.MissingUpdatesFor(ctx, empty)
	require.NoError(t, err)
	full, err := server.FullExport(ctx)
	require.NoError(t, err)
	assert.Equal(t, full, missing)

	require.NoError(t, client.ApplyUpdate(ctx, missing, OriginRemote))
	assert.Equal(t, read(t, server), read(t, client))

	// клиент в актуальном состоянии получает пустой diff
	sv, err := client.StateVector(ctx)
	require.NoError(t, err)
	missing, err = server.MissingUpdatesFor(ctx, sv)
	require.NoError(t, err)
	none, err := New().FullExport(ctx)
	require.NoError(t, err)
	assert.Equal(t, none, missing)
}

func TestSync_DiffSinceIsMinimal(t *testing.T) {
	ctx := context.Background()
	a := New()
	var shared strings.Builder
	for range 20 {
		shared.WriteString(uuid.NewString())
	}
	_, err := a.InsertText(ctx, "content", 0, shared.String())
	require.NoError(t, err)

	b := New()
	exchange(t, a, b)

	_, err = a.InsertText(ctx, "content", 0, "!")
	require.NoError(t, err)

	sv, err := b.StateVector(ctx)
	require.NoError(t, err)
	diff, err := a.DiffSince(ctx, sv)
	require.NoError(t, err)
	full, err := a.FullExport(ctx)
	require.NoError(t, err)
	assert.Less(t, len(diff), len(full)/2)

	require.NoError(t, b.ApplyUpdate(ctx, diff, OriginRemote))
	assert.Equal(t, read(t, a), read(t, b))
}

func TestSync_Malformed(t *testing.T) {
	ctx := context.Background()
	d := New()
	_, err := d.InsertText(ctx, "content", 0, "safe")
	require.NoError(t, err)
	before, err := d.FullExport(ctx)
	require.NoError(t, err)

	// повреждение тела изменения ломает его контрольную сумму
	corrupted := append([]byte(nil), before...)
	corrupted[len(corrupted)-1] ^= 0xff

	inputs := map[string][]byte{
		"nil":           nil,
		"empty":         {},
		"bad version":   {0x7f, 0x01},
		"truncated":     before[:len(before)-2],
		"random":        {formatVersion, 0xde, 0xad, 0xbe, 0xef},
		"wrong message": {formatVersion, 0x08, 0x96, 0x01},
		"corrupted":     corrupted,
		"not changes":   {formatVersion, 0x0a, 0x03, 'a', 'b', 'c'},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := d.DiffSince(ctx, in)
			assert.ErrorIs(t, err, ErrDecode)
			_, err = d.MissingUpdatesFor(ctx, in)
			assert.ErrorIs(t, err, ErrDecode)

			err = d.ApplyUpdate(ctx, in, OriginRemote)
			assert.ErrorIs(t, err, ErrDecode)

			after, err := d.FullExport(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestSync_Snapshot(t *testing.T) {
	ctx := context.Background()
	d := New(WithClientID(3))
	_, err := d.InsertText(ctx, "content", 0, "abc")
	require.NoError(t, err)

	update, sv, err := d.Snapshot(ctx)
	require.NoError(t, err)

	full, err := d.FullExport(ctx)
	require.NoError(t, err)
	own, err := d.StateVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, full, update)
	assert.Equal(t, own, sv)

	restored := New(WithClientID(4))
	require.NoError(t, restored.ApplyUpdate(ctx, update, OriginRemote))
	text, err := restored.ReadText(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestSync_OutOfOrder(t *testing.T) {
	ctx := context.Background()
	a := New()
	first, err := a.InsertText(ctx, "content", 0, "a")
	require.NoError(t, err)
	second, err := a.InsertText(ctx, "content", 1, "b")
	require.NoError(t, err)

	b := New()
	empty, err := b.StateVector(ctx)
	require.NoError(t, err)

	// изменение ждет зависимость и не видно до ее прихода
	require.NoError(t, b.ApplyUpdate(ctx, second, OriginRemote))
	text, err := b.ReadText(ctx, "content")
	require.NoError(t, err)
	assert.Empty(t, text)
	sv, err := b.StateVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, empty, sv)

	// откат локальной транзакции не теряет ожидающие изменения
	_, err = b.WithTransaction(ctx, OriginLocal, func(_ context.Context, tx *Transaction) error {
		require.NoError(t, tx.Push("scratch", 1))
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, b.ApplyUpdate(ctx, first, OriginRemote))
	assert.Equal(t, read(t, a), read(t, b))

	sva, err := a.StateVector(ctx)
	require.NoError(t, err)
	svb, err := b.StateVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, sva, svb)
}

func TestSync_IndependentContainers(t *testing.T) {
	ctx := context.Background()
	a := New(WithClientID(1))
	b := New(WithClientID(2), WithDefaultContainers())

	// одноименные контейнеры, созданные независимо, сливаются в один
	_, err := a.ArrayPush(ctx, "items", "from a")
	require.NoError(t, err)
	_, err = b.ArrayPush(ctx, "items", "from b")
	require.NoError(t, err)
	_, err = a.InsertText(ctx, "content", 0, "A")
	require.NoError(t, err)

	exchange(t, a, b)
	exchange(t, b, a)

	sa, sb := read(t, a), read(t, b)
	assert.Equal(t, sa, sb)
	assert.Equal(t, "A", sa.text)
	assert.Contains(t, sa.items, `"from a"`)
	assert.Contains(t, sa.items, `"from b"`)
}
