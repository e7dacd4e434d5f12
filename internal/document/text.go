package document

import "context"

func (d *Document) local(ctx context.Context, fn func(tx *Transaction) error) ([]byte, error) {
	return d.WithTransaction(ctx, OriginLocal, func(_ context.Context, tx *Transaction) error {
		return fn(tx)
	})
}

// InsertText вставляет text в позицию index (в символах Unicode) и возвращает diff.
// Индекс за пределами содержимого возвращает ErrRange.
func (d *Document) InsertText(ctx context.Context, name string, index int, text string) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.InsertText(name, index, text)
	})
}

// DeleteText удаляет length символов начиная с index и возвращает diff.
func (d *Document) DeleteText(ctx context.Context, name string, index, length int) ([]byte, error) {
	return d.local(ctx, func(tx *Transaction) error {
		return tx.DeleteText(name, index, length)
	})
}

// ReadText returns the content of a text container
func (d *Document) ReadText(ctx context.Context, name string) (string, error) {
	var s string
	err := d.read(ctx, func(tx *Transaction) error {
		var err error
		s, err = tx.Text(name)
		return err
	})
	return s, err
}
