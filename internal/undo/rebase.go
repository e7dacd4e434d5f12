package undo

import (
	"github.com/iudanet/yoin/internal/document"
)

// rebaseAll пересчитывает позиции сохраненных изменений по следующему
// изменению next. Вставка, в середину которой попала чужая вставка,
// делится на две части; полностью удаленная вставка исчезает.
func rebaseAll(stored []document.Change, next document.Change) []document.Change {
	if next.Kind == document.ChangeMapSet || len(stored) == 0 {
		return stored
	}
	out := stored[:0:0]
	for _, ch := range stored {
		if ch.Kind == document.ChangeMapSet || ch.Container != next.Container {
			out = append(out, ch)
			continue
		}
		out = append(out, rebase(ch, next)...)
	}
	return out
}

func rebase(ch, next document.Change) []document.Change {
	p, k := next.Index, next.Length
	if next.Kind == document.ChangeInsert {
		if ch.Kind == document.ChangeDelete {
			if p < ch.Index {
				ch.Index += k
			}
			return []document.Change{ch}
		}
		switch {
		case p <= ch.Index:
			ch.Index += k
			return []document.Change{ch}
		case p < ch.Index+ch.Length:
			head := slice(ch, 0, p-ch.Index)
			tail := slice(ch, p-ch.Index, ch.Length)
			tail.Index = p + k
			return []document.Change{head, tail}
		default:
			return []document.Change{ch}
		}
	}

	// удаление [p, p+k)
	shift := func(x int) int {
		switch {
		case x <= p:
			return x
		case x <= p+k:
			return p
		default:
			return x - k
		}
	}
	if ch.Kind == document.ChangeDelete {
		ch.Index = shift(ch.Index)
		return []document.Change{ch}
	}
	start, end := ch.Index, ch.Index+ch.Length
	lo, hi := max(start, p), min(end, p+k)
	if lo < hi {
		// удаленная часть вставки больше не существует
		head := slice(ch, 0, lo-start)
		tail := slice(ch, hi-start, ch.Length)
		ch = join(head, tail)
	}
	ch.Index = shift(start)
	if ch.Length == 0 {
		return nil
	}
	return []document.Change{ch}
}

// slice возвращает часть изменения с элементами [from, to).
func slice(ch document.Change, from, to int) document.Change {
	part := ch
	part.Index = ch.Index + from
	part.Length = to - from
	switch v := ch.Value.(type) {
	case string:
		runes := []rune(v)
		if to <= len(runes) {
			part.Value = string(runes[from:to])
		}
	case []any:
		if to <= len(v) {
			part.Value = v[from:to:to]
		}
	}
	return part
}

func join(head, tail document.Change) document.Change {
	out := head
	out.Length = head.Length + tail.Length
	switch h := head.Value.(type) {
	case string:
		t, _ := tail.Value.(string)
		out.Value = h + t
	case []any:
		t, _ := tail.Value.([]any)
		out.Value = append(h[:len(h):len(h)], t...)
	}
	return out
}
