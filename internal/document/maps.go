package document

import (
	"context"
	"fmt"
)

// MapSet записывает скалярное значение ключа и возвращает diff.
func (d *Document) MapSet(ctx context.Context, name, key string, value any) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.MapSet(name, key, value)
	})
}

// MapDelete удаляет ключ и возвращает diff (nil, если ключа не было).
func (d *Document) MapDelete(ctx context.Context, name, key string) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.MapDelete(name, key)
	})
}

// MapGet возвращает значение ключа в виде JSON; "null" для отсутствующего ключа.
func (d *Document) MapGet(ctx context.Context, name, key string) (string, error) {
	var out any
	err := d.read(ctx, func(tx *Transaction) error {
		m, err := tx.mapping(name, false)
		if err != nil || m == nil {
			return err
		}
		v, err := m.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read key %q: %w", key, err)
		}
		out = render(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return marshal(out)
}

// MapGetAll возвращает содержимое map в виде JSON-объекта, "{}" для пустой map.
func (d *Document) MapGetAll(ctx context.Context, name string) (string, error) {
	var out map[string]any
	err := d.read(ctx, func(tx *Transaction) error {
		var err error
		out, err = tx.Map(name)
		return err
	})
	if err != nil {
		return "", err
	}
	return marshal(out)
}
