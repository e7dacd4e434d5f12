package document

import (
	"context"
	"fmt"

	"github.com/automerge/automerge-go"
)

// SetDeep записывает скаляр value по пути path внутри корневой map root.
// Промежуточные map создаются при необходимости. Если по пути встречается
// не-map значение, оно заменяется новой пустой map (или, с WithStrictPaths,
// вызов завершается ErrPath). Операция атомарна: при ошибке документ не меняется.
func (d *Document) SetDeep(ctx context.Context, root string, path []any, value any) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.SetDeep(root, path, value)
	})
}

// SetDeep is the transactional form of Document.SetDeep
func (tx *Transaction) SetDeep(root string, path []any, value any) error {
	keys, err := pathKeys(path)
	if err != nil {
		return err
	}
	v, err := toScalar(value)
	if err != nil {
		return err
	}

	m, err := tx.mapping(root, true)
	if err != nil {
		return err
	}

	last := len(keys) - 1
	for i, key := range keys[:last] {
		cur, err := m.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read key %q: %w", key, err)
		}
		if cur.Kind() == automerge.KindMap {
			m = cur.Map()
			continue
		}
		if cur.Kind() != automerge.KindVoid {
			if tx.doc.strictPaths {
				return fmt.Errorf("%w: segment %d (%q) holds a non-map value", ErrPath, i, key)
			}
			tx.doc.log.Debug("replacing non-map value on deep path", "root", root, "key", key)
		}
		if err := tx.set(root, keys[:i], m, key, map[string]any{}); err != nil {
			return err
		}
		if cur, err = m.Get(key); err != nil {
			return fmt.Errorf("failed to read key %q: %w", key, err)
		}
		m = cur.Map()
	}
	return tx.set(root, keys[:last], m, keys[last], v)
}

func pathKeys(path []any) ([]string, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrPath)
	}
	keys := make([]string, len(path))
	for i, seg := range path {
		key, ok := seg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: segment %d is %T, not a string", ErrPath, i, seg)
		}
		keys[i] = key
	}
	return keys, nil
}

// parent спускается по path[:len(path)-1] от корневой map root.
// Отсутствующая или не-map промежуточная запись возвращает ErrPath.
func (tx *Transaction) parent(root string, path []string) (*automerge.Map, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrPath)
	}
	m, err := tx.mapping(root, false)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: map %q does not exist", ErrPath, root)
	}
	for i, key := range path[:len(path)-1] {
		cur, err := m.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read key %q: %w", key, err)
		}
		if cur.Kind() != automerge.KindMap {
			return nil, fmt.Errorf("%w: segment %d (%q) is not a map", ErrPath, i, key)
		}
		m = cur.Map()
	}
	return m, nil
}

// GetPath возвращает значение по пути от корневой map root (nil для отсутствующего ключа).
func (tx *Transaction) GetPath(root string, path []string) (any, error) {
	m, err := tx.parent(root, path)
	if err != nil {
		return nil, err
	}
	v, err := m.Get(path[len(path)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", path[len(path)-1], err)
	}
	return render(v), nil
}

// PutPath записывает значение по пути; все промежуточные map должны существовать.
// Допускаются скаляры, map[string]any и []any.
func (tx *Transaction) PutPath(root string, path []string, value any) error {
	m, err := tx.parent(root, path)
	if err != nil {
		return err
	}
	last := len(path) - 1
	return tx.set(root, path[:last], m, path[last], value)
}

// DeletePath удаляет ключ по пути; отсутствующий ключ - не ошибка.
func (tx *Transaction) DeletePath(root string, path []string) error {
	m, err := tx.parent(root, path)
	if err != nil {
		return err
	}
	last := len(path) - 1
	return tx.remove(root, path[:last], m, path[last])
}
