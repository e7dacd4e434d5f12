package document

import (
	"maps"
	"reflect"
	"slices"
)

func (d *Document) observed() bool {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	return len(d.txObs) > 0
}

// sequences снимает содержимое всех текстов (string) и массивов ([]any) документа.
func (d *Document) sequences() (map[string]any, error) {
	present, err := presentRoots(d.doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(present))
	for name, kind := range present {
		if kind == KindMap {
			continue
		}
		v, err := d.doc.RootMap().Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = render(v)
	}
	return out, nil
}

// splices описывает разницу двух снимков последовательностей как удаление
// и вставку на месте первого расхождения. Для каждого контейнера изменения
// упорядочены так, что их можно применить одно за другим.
func splices(before, after map[string]any) []Change {
	var out []Change
	for _, name := range slices.Sorted(maps.Keys(after)) {
		switch cur := after[name].(type) {
		case string:
			prev, _ := before[name].(string)
			out = append(out, spliceText(name, []rune(prev), []rune(cur))...)
		case []any:
			prev, _ := before[name].([]any)
			out = append(out, spliceArray(name, prev, cur)...)
		}
	}
	return out
}

// bounds находит общий префикс и общий суффикс двух последовательностей.
func bounds(n, m int, equal func(i, j int) bool) (prefix, suffix int) {
	for prefix < n && prefix < m && equal(prefix, prefix) {
		prefix++
	}
	for suffix < n-prefix && suffix < m-prefix && equal(n-1-suffix, m-1-suffix) {
		suffix++
	}
	return prefix, suffix
}

func spliceText(name string, prev, cur []rune) []Change {
	p, s := bounds(len(prev), len(cur), func(i, j int) bool { return prev[i] == cur[j] })
	var out []Change
	if removed := prev[p : len(prev)-s]; len(removed) > 0 {
		out = append(out, Change{Kind: ChangeDelete, Type: KindText, Container: name, Index: p, Length: len(removed), Value: string(removed)})
	}
	if added := cur[p : len(cur)-s]; len(added) > 0 {
		out = append(out, Change{Kind: ChangeInsert, Type: KindText, Container: name, Index: p, Length: len(added), Value: string(added)})
	}
	return out
}

func spliceArray(name string, prev, cur []any) []Change {
	p, s := bounds(len(prev), len(cur), func(i, j int) bool { return reflect.DeepEqual(prev[i], cur[j]) })
	var out []Change
	if removed := prev[p : len(prev)-s]; len(removed) > 0 {
		out = append(out, Change{Kind: ChangeDelete, Type: KindArray, Container: name, Index: p, Length: len(removed), Value: removed})
	}
	if added := cur[p : len(cur)-s]; len(added) > 0 {
		out = append(out, Change{Kind: ChangeInsert, Type: KindArray, Container: name, Index: p, Length: len(added), Value: added})
	}
	return out
}
