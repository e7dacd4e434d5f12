package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/yoin/internal/document"
)

func textInsert(index int, s string) document.Change {
	return document.Change{
		Kind:      document.ChangeInsert,
		Type:      document.KindText,
		Container: "content",
		Index:     index,
		Length:    len([]rune(s)),
		Value:     s,
	}
}

func textDelete(index int, s string) document.Change {
	ch := textInsert(index, s)
	ch.Kind = document.ChangeDelete
	return ch
}

func TestRebase(t *testing.T) {
	tests := []struct {
		name   string
		stored document.Change
		next   document.Change
		want   []document.Change
	}{
		{
			name:   "insert before shifts",
			stored: textInsert(3, "abc"),
			next:   textInsert(1, "xy"),
			want:   []document.Change{textInsert(5, "abc")},
		},
		{
			name:   "insert at start shifts",
			stored: textInsert(3, "abc"),
			next:   textInsert(3, "x"),
			want:   []document.Change{textInsert(4, "abc")},
		},
		{
			name:   "insert after keeps",
			stored: textInsert(3, "abc"),
			next:   textInsert(6, "x"),
			want:   []document.Change{textInsert(3, "abc")},
		},
		{
			name:   "insert inside splits",
			stored: textInsert(3, "abcd"),
			next:   textInsert(5, "xy"),
			want:   []document.Change{textInsert(3, "ab"), textInsert(7, "cd")},
		},
		{
			name:   "delete before shifts back",
			stored: textInsert(5, "abc"),
			next:   textDelete(1, "xy"),
			want:   []document.Change{textInsert(3, "abc")},
		},
		{
			name:   "delete overlapping head",
			stored: textInsert(3, "abcd"),
			next:   textDelete(2, "zab"),
			want:   []document.Change{textInsert(2, "cd")},
		},
		{
			name:   "delete inside",
			stored: textInsert(3, "abcd"),
			next:   textDelete(4, "bc"),
			want:   []document.Change{textInsert(3, "ad")},
		},
		{
			name:   "delete covering drops",
			stored: textInsert(3, "ab"),
			next:   textDelete(0, "xyzabq"),
			want:   nil,
		},
		{
			name:   "deletion shifted by insert before",
			stored: textDelete(4, "gone"),
			next:   textInsert(0, "xx"),
			want:   []document.Change{textDelete(6, "gone")},
		},
		{
			name:   "deletion point inside removed range",
			stored: textDelete(4, "gone"),
			next:   textDelete(2, "abcd"),
			want:   []document.Change{textDelete(2, "gone")},
		},
		{
			name:   "other container untouched",
			stored: textInsert(3, "abc"),
			next: document.Change{
				Kind:      document.ChangeInsert,
				Type:      document.KindArray,
				Container: "items",
				Length:    1,
				Value:     []any{"x"},
			},
			want: []document.Change{textInsert(3, "abc")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rebaseAll([]document.Change{tt.stored}, tt.next)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRebase_ArrayValues(t *testing.T) {
	stored := document.Change{
		Kind:      document.ChangeInsert,
		Type:      document.KindArray,
		Container: "items",
		Index:     0,
		Length:    3,
		Value:     []any{"a", "b", "c"},
	}
	next := document.Change{
		Kind:      document.ChangeDelete,
		Type:      document.KindArray,
		Container: "items",
		Index:     1,
		Length:    1,
		Value:     []any{"b"},
	}

	got := rebaseAll([]document.Change{stored}, next)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Length)
	assert.Equal(t, []any{"a", "c"}, got[0].Value)
}
