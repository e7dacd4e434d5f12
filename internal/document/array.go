package document

import "context"

// ArrayPush добавляет значение в конец массива и возвращает diff.
func (d *Document) ArrayPush(ctx context.Context, name string, value any) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.Push(name, value)
	})
}

// ArrayInsert вставляет значение в позицию index и возвращает diff.
func (d *Document) ArrayInsert(ctx context.Context, name string, index int, value any) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.InsertArray(name, index, value)
	})
}

// ArrayDelete удаляет length элементов начиная с index и возвращает diff.
func (d *Document) ArrayDelete(ctx context.Context, name string, index, length int) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.DeleteArray(name, index, length)
	})
}

// ArrayGet возвращает элемент массива в виде JSON; "null" для индекса вне массива.
func (d *Document) ArrayGet(ctx context.Context, name string, index int) (string, error) {
	var out any
	err := d.read(ctx, func(tx *Transaction) error {
		values, err := tx.Array(name)
		if err != nil {
			return err
		}
		if index >= 0 && index < len(values) {
			out = values[index]
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return marshal(out)
}

// ArrayGetAll возвращает содержимое массива в виде JSON-массива, "[]" для пустого.
func (d *Document) ArrayGetAll(ctx context.Context, name string) (string, error) {
	var out []any
	err := d.read(ctx, func(tx *Transaction) error {
		var err error
		out, err = tx.Array(name)
		return err
	})
	if err != nil {
		return "", err
	}
	return marshal(out)
}
