package document

import (
	"context"
	"fmt"
)

// StateVector сериализует текущие логические часы документа.
func (d *Document) StateVector(ctx context.Context) ([]byte, error) {
	var sv []byte
	err := d.read(ctx, func(*Transaction) error {
		var err error
		sv, err = encodeStateVector(d.clock)
		return err
	})
	return sv, err
}

// FullExport кодирует полное состояние документа (diff относительно пустого state vector).
func (d *Document) FullExport(ctx context.Context) ([]byte, error) {
	var update []byte
	err := d.read(ctx, func(*Transaction) error {
		var err error
		update, err = d.diff(stateVector{})
		return err
	})
	return update, err
}

// Snapshot возвращает полный экспорт и state vector, снятые атомарно.
func (d *Document) Snapshot(ctx context.Context) (update, stateVector []byte, err error) {
	err = d.read(ctx, func(*Transaction) error {
		var err error
		if update, err = d.diff(nil); err != nil {
			return err
		}
		stateVector, err = encodeStateVector(d.clock)
		return err
	})
	return update, stateVector, err
}

// DiffSince кодирует изменения, отсутствующие у реплики с state vector remote.
// Некорректный state vector возвращает ErrDecode.
func (d *Document) DiffSince(ctx context.Context, remote []byte) ([]byte, error) {
	sv, err := decodeStateVector(remote)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state vector: %w", err)
	}
	var update []byte
	err = d.read(ctx, func(*Transaction) error {
		update, err = d.diff(sv)
		return err
	})
	return update, err
}

// diff отбирает изменения, которых нет у реплики с state vector sv,
// в причинном порядке истории документа.
func (d *Document) diff(sv stateVector) ([]byte, error) {
	all, err := d.doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	missing := all[:0:0]
	for _, ch := range all {
		if !sv.covers(ch) {
			missing = append(missing, ch)
		}
	}
	return encodeUpdate(missing), nil
}

// MissingUpdatesFor возвращает все, что есть у сервера сверх state vector клиента.
// Эквивалентен DiffSince; точка входа для ответа на объявленный клиентом прогресс.
func (d *Document) MissingUpdatesFor(ctx context.Context, clientStateVector []byte) ([]byte, error) {
	return d.DiffSince(ctx, clientStateVector)
}

// ApplyUpdate применяет обновление в транзакции с заданным origin.
// Некорректное обновление возвращает ErrDecode и не изменяет документ.
// Изменения с неизвестными зависимостями ждут их в очереди automerge.
func (d *Document) ApplyUpdate(ctx context.Context, update []byte, origin Origin) error {
	_, err := d.WithTransaction(ctx, origin, func(_ context.Context, tx *Transaction) error {
		return tx.applyUpdate(update)
	})
	if err != nil {
		return fmt.Errorf("failed to apply update: %w", err)
	}
	return nil
}
