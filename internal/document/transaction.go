package document

import (
	"fmt"
	"unicode/utf8"

	"github.com/automerge/automerge-go"
)

// Transaction - открытая транзакция документа. Действительна только внутри
// функции, переданной в WithTransaction.
type Transaction struct {
	doc      *Document
	meta     map[string]any
	created  []ContainerInfo
	changes  []Change
	incoming []*automerge.Change
	origin   Origin
	dirty    bool // есть незафиксированные локальные операции automerge
	touched  bool // состояние automerge менялось
}

// Origin returns the origin the transaction was opened with
func (tx *Transaction) Origin() Origin {
	return tx.origin
}

// SetMeta прикрепляет к транзакции метаданные, которые получат наблюдатели в TransactionEvent.Meta.
func (tx *Transaction) SetMeta(key string, value any) {
	if tx.meta == nil {
		tx.meta = make(map[string]any)
	}
	tx.meta[key] = value
}

// Changes returns the visible changes recorded so far, in application order
func (tx *Transaction) Changes() []Change {
	return tx.changes
}

func (tx *Transaction) mutate() {
	tx.dirty = true
	tx.touched = true
}

func (tx *Transaction) record(ch Change) {
	tx.changes = append(tx.changes, ch)
}

// flush фиксирует накопленные локальные операции отдельным изменением automerge.
func (tx *Transaction) flush() error {
	if !tx.dirty {
		return nil
	}
	if _, err := tx.doc.doc.Commit(""); err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	tx.dirty = false
	return nil
}

// lookup возвращает корневой контейнер name, проверяя его тип. Отсутствующий
// контейнер объявляется в журнале транзакции и возвращается как nil; с create
// он материализуется изменением-генезисом.
func (tx *Transaction) lookup(name string, kind Kind, create bool) (*automerge.Value, error) {
	v, err := tx.doc.doc.RootMap().Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read container %q: %w", name, err)
	}
	if v.Kind() != automerge.KindVoid {
		if got, ok := kindOf(v); !ok || got != kind {
			return nil, fmt.Errorf("%w: container %q is not a %s", ErrType, name, kind)
		}
		return v, nil
	}

	if err := tx.declare(name, kind); err != nil {
		return nil, err
	}
	if !create {
		return nil, nil
	}
	// локальные операции фиксируются до применения чужого изменения
	if err := tx.flush(); err != nil {
		return nil, err
	}
	tx.touched = true
	if err := tx.doc.materialize(name, kind); err != nil {
		return nil, err
	}
	if v, err = tx.doc.doc.RootMap().Get(name); err != nil {
		return nil, fmt.Errorf("failed to read container %q: %w", name, err)
	}
	if got, ok := kindOf(v); !ok || got != kind {
		return nil, fmt.Errorf("%w: container %q is not a %s", ErrType, name, kind)
	}
	return v, nil
}

// declare регистрирует имя в журнале транзакции. Имя, уже известное
// документу или транзакции с другим типом, возвращает ErrType.
func (tx *Transaction) declare(name string, kind Kind) error {
	known, ok := tx.doc.roots[name]
	for _, info := range tx.created {
		if info.Name == name {
			known, ok = info.Kind, true
		}
	}
	if ok {
		if known != kind {
			return fmt.Errorf("%w: container %q is a %s, not a %s", ErrType, name, known, kind)
		}
		return nil
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrType, kind)
	}
	tx.created = append(tx.created, ContainerInfo{Name: name, Kind: kind})
	return nil
}

func (tx *Transaction) text(name string, create bool) (*automerge.Text, error) {
	v, err := tx.lookup(name, KindText, create)
	if err != nil || v == nil {
		return nil, err
	}
	return v.Text(), nil
}

func (tx *Transaction) mapping(name string, create bool) (*automerge.Map, error) {
	v, err := tx.lookup(name, KindMap, create)
	if err != nil || v == nil {
		return nil, err
	}
	return v.Map(), nil
}

func (tx *Transaction) list(name string, create bool) (*automerge.List, error) {
	v, err := tx.lookup(name, KindArray, create)
	if err != nil || v == nil {
		return nil, err
	}
	return v.List(), nil
}

func checkRange(index, length, size int) error {
	if index < 0 || length < 0 || index > size || length > size-index {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrRange, index, index+length, size)
	}
	return nil
}

// InsertText вставляет text в позицию index (в символах Unicode) текстового контейнера name.
func (tx *Transaction) InsertText(name string, index int, text string) error {
	current, err := tx.Text(name)
	if err != nil {
		return err
	}
	if err := checkRange(index, 0, utf8.RuneCountInString(current)); err != nil {
		return err
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrType)
	}
	if text == "" {
		return nil
	}

	t, err := tx.text(name, true)
	if err != nil {
		return err
	}
	tx.mutate()
	if err := t.Insert(index, text); err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	tx.record(Change{
		Kind:      ChangeInsert,
		Type:      KindText,
		Container: name,
		Index:     index,
		Length:    utf8.RuneCountInString(text),
		Value:     text,
	})
	return nil
}

// DeleteText удаляет length символов начиная с index.
func (tx *Transaction) DeleteText(name string, index, length int) error {
	current, err := tx.Text(name)
	if err != nil {
		return err
	}
	runes := []rune(current)
	if err := checkRange(index, length, len(runes)); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}

	t, err := tx.text(name, false)
	if err != nil {
		return err
	}
	tx.mutate()
	if err := t.Delete(index, length); err != nil {
		return fmt.Errorf("failed to delete text: %w", err)
	}
	tx.record(Change{
		Kind:      ChangeDelete,
		Type:      KindText,
		Container: name,
		Index:     index,
		Length:    length,
		Value:     string(runes[index : index+length]),
	})
	return nil
}

// Text returns the current content of a text container
func (tx *Transaction) Text(name string) (string, error) {
	t, err := tx.text(name, false)
	if err != nil || t == nil {
		return "", err
	}
	s, err := t.Get()
	if err != nil {
		return "", fmt.Errorf("failed to read text %q: %w", name, err)
	}
	return s, nil
}

// MapSet записывает скалярное значение ключа.
func (tx *Transaction) MapSet(name, key string, value any) error {
	v, err := toScalar(value)
	if err != nil {
		return err
	}
	m, err := tx.mapping(name, true)
	if err != nil {
		return err
	}
	return tx.set(name, nil, m, key, v)
}

// MapDelete removes a key; removing an absent key is a no-op
func (tx *Transaction) MapDelete(name, key string) error {
	m, err := tx.mapping(name, false)
	if err != nil || m == nil {
		return err
	}
	return tx.remove(name, nil, m, key)
}

// set записывает value в ключ key map m, расположенной по пути parent от корня name.
func (tx *Transaction) set(name string, parent []string, m *automerge.Map, key string, value any) error {
	prev, err := m.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read key %q: %w", key, err)
	}
	tx.mutate()
	if err := put(m, key, value); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	tx.record(Change{
		Kind:      ChangeMapSet,
		Type:      KindMap,
		Container: name,
		Path:      append(append([]string(nil), parent...), key),
		Value:     value,
		Prev:      render(prev),
	})
	return nil
}

func (tx *Transaction) remove(name string, parent []string, m *automerge.Map, key string) error {
	prev, err := m.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if prev.Kind() == automerge.KindVoid {
		return nil
	}
	tx.mutate()
	if err := m.Delete(key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	tx.record(Change{
		Kind:      ChangeMapSet,
		Type:      KindMap,
		Container: name,
		Path:      append(append([]string(nil), parent...), key),
		Prev:      render(prev),
	})
	return nil
}

// Push добавляет скалярное значение в конец массива.
func (tx *Transaction) Push(name string, value any) error {
	v, err := toScalar(value)
	if err != nil {
		return err
	}
	l, err := tx.list(name, true)
	if err != nil {
		return err
	}
	return tx.insertValues(name, l, l.Len(), []any{v})
}

// InsertArray вставляет скалярное значение в позицию index массива.
func (tx *Transaction) InsertArray(name string, index int, value any) error {
	v, err := toScalar(value)
	if err != nil {
		return err
	}
	return tx.InsertValues(name, index, v)
}

// InsertValues вставляет значения в позицию index массива. Кроме скаляров
// допускаются nil, map[string]any и []any: так восстанавливаются удаленные элементы.
func (tx *Transaction) InsertValues(name string, index int, values ...any) error {
	l, err := tx.list(name, false)
	if err != nil {
		return err
	}
	size := 0
	if l != nil {
		size = l.Len()
	}
	if err := checkRange(index, 0, size); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if l == nil {
		if l, err = tx.list(name, true); err != nil {
			return err
		}
	}
	return tx.insertValues(name, l, index, values)
}

func (tx *Transaction) insertValues(name string, l *automerge.List, index int, values []any) error {
	tx.mutate()
	if err := insert(l, index, values); err != nil {
		return fmt.Errorf("failed to insert into array %q: %w", name, err)
	}
	tx.record(Change{
		Kind:      ChangeInsert,
		Type:      KindArray,
		Container: name,
		Index:     index,
		Length:    len(values),
		Value:     values,
	})
	return nil
}

// DeleteArray удаляет length элементов массива начиная с index.
func (tx *Transaction) DeleteArray(name string, index, length int) error {
	l, err := tx.list(name, false)
	if err != nil {
		return err
	}
	values := renderList(l)
	if err := checkRange(index, length, len(values)); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}

	tx.mutate()
	for range length {
		if err := l.Delete(index); err != nil {
			return fmt.Errorf("failed to delete from array %q: %w", name, err)
		}
	}
	tx.record(Change{
		Kind:      ChangeDelete,
		Type:      KindArray,
		Container: name,
		Index:     index,
		Length:    length,
		Value:     values[index : index+length],
	})
	return nil
}

// Array returns the current elements of an array container
func (tx *Transaction) Array(name string) ([]any, error) {
	l, err := tx.list(name, false)
	if err != nil {
		return nil, err
	}
	return renderList(l), nil
}

// Map returns the current content of a map container, nested maps included
func (tx *Transaction) Map(name string) (map[string]any, error) {
	m, err := tx.mapping(name, false)
	if err != nil {
		return nil, err
	}
	return renderMap(m), nil
}

// applyUpdate применяет удаленное обновление. Обновление либо применяется
// целиком, либо возвращает ошибку; откат выполняет WithTransaction.
func (tx *Transaction) applyUpdate(update []byte) error {
	changes, err := decodeUpdate(update)
	if err != nil {
		return err
	}
	fresh := changes[:0:0]
	for _, ch := range changes {
		if !tx.doc.clock.covers(ch) {
			fresh = append(fresh, ch)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := tx.flush(); err != nil {
		return err
	}

	// позиционные изменения нужны только наблюдателям (координатору отмены)
	var before map[string]any
	if tx.doc.observed() {
		if before, err = tx.doc.sequences(); err != nil {
			return err
		}
	}
	tx.touched = true
	if err := tx.doc.doc.Apply(fresh...); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	tx.incoming = append(tx.incoming, fresh...)
	if before == nil {
		return nil
	}
	after, err := tx.doc.sequences()
	if err != nil {
		return err
	}
	tx.changes = append(tx.changes, splices(before, after)...)
	return nil
}
