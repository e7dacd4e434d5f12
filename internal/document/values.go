package document

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/automerge/automerge-go"
)

// toScalar приводит значение Go к скаляру документа.
// Допустимы строки, bool и любые целые и вещественные числа (хранятся как float64).
func toScalar(v any) (any, error) {
	var f float64
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return x, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		return nil, fmt.Errorf("%w: %T is not a scalar", ErrType, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not a finite number", ErrType, f)
	}
	return f, nil
}

// render переводит значение automerge в значение Go: string, float64, bool,
// map[string]any, []any или nil. Текст внутри map отдается строкой.
func render(v *automerge.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind() {
	case automerge.KindStr:
		return v.Str()
	case automerge.KindFloat64:
		return v.Float64()
	case automerge.KindInt64:
		return float64(v.Int64())
	case automerge.KindUint64:
		return float64(v.Uint64())
	case automerge.KindBool:
		return v.Bool()
	case automerge.KindMap:
		return renderMap(v.Map())
	case automerge.KindList:
		return renderList(v.List())
	case automerge.KindText:
		s, _ := v.Text().Get()
		return s
	default:
		return nil
	}
}

func renderMap(m *automerge.Map) map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	values, err := m.Values()
	if err != nil {
		return out
	}
	for key, v := range values {
		out[key] = render(v)
	}
	return out
}

func renderList(l *automerge.List) []any {
	out := []any{}
	if l == nil {
		return out
	}
	values, err := l.Values()
	if err != nil {
		return out
	}
	for _, v := range values {
		out = append(out, render(v))
	}
	return out
}

// put записывает значение Go в ключ map, воссоздавая вложенные map и массивы.
func put(m *automerge.Map, key string, value any) error {
	switch x := value.(type) {
	case map[string]any:
		if err := m.Set(key, automerge.NewMap()); err != nil {
			return err
		}
		nested, err := m.Get(key)
		if err != nil {
			return err
		}
		for k, v := range x {
			if err := put(nested.Map(), k, v); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := m.Set(key, automerge.NewList()); err != nil {
			return err
		}
		nested, err := m.Get(key)
		if err != nil {
			return err
		}
		return insert(nested.List(), 0, x)
	default:
		return m.Set(key, x)
	}
}

// insert вставляет значения Go в массив начиная с index.
func insert(l *automerge.List, index int, values []any) error {
	for i, value := range values {
		pos := index + i
		switch x := value.(type) {
		case map[string]any:
			if err := l.Insert(pos, automerge.NewMap()); err != nil {
				return err
			}
			nested, err := l.Get(pos)
			if err != nil {
				return err
			}
			for k, v := range x {
				if err := put(nested.Map(), k, v); err != nil {
					return err
				}
			}
		case []any:
			if err := l.Insert(pos, automerge.NewList()); err != nil {
				return err
			}
			nested, err := l.Get(pos)
			if err != nil {
				return err
			}
			if err := insert(nested.List(), 0, x); err != nil {
				return err
			}
		default:
			if err := l.Insert(pos, x); err != nil {
				return err
			}
		}
	}
	return nil
}

// marshal кодирует значение в JSON. Ключи объектов сортируются encoding/json.
func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return string(b), nil
}
