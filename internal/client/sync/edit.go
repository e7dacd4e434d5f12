package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/iudanet/yoin/internal/document"
)

// Правки выполняются с OriginLocal: попадают в историю отмены
// и рассылаются серверу из наблюдателя транзакций.

// Text returns the content of a text container
func (c *Client) Text(ctx context.Context, name string) (string, error) {
	return c.doc.ReadText(ctx, name)
}

// InsertText вставляет text в позицию index
func (c *Client) InsertText(ctx context.Context, name string, index int, text string) error {
	_, err := c.doc.InsertText(ctx, name, index, text)
	return err
}

// DeleteText удаляет length символов начиная с index
func (c *Client) DeleteText(ctx context.Context, name string, index, length int) error {
	_, err := c.doc.DeleteText(ctx, name, index, length)
	return err
}

// ClearText удаляет весь текст контейнера одной транзакцией.
func (c *Client) ClearText(ctx context.Context, name string) error {
	_, err := c.doc.WithTransaction(ctx, document.OriginLocal, func(_ context.Context, tx *document.Transaction) error {
		text, err := tx.Text(name)
		if err != nil {
			return err
		}
		if n := utf8.RuneCountInString(text); n > 0 {
			return tx.DeleteText(name, 0, n)
		}
		return nil
	})
	return err
}

// SetMap записывает значение ключа. Объект (map[string]any) раскладывается
// во вложенные map одной транзакцией.
func (c *Client) SetMap(ctx context.Context, name, key string, value any) error {
	if c.schemas != nil {
		if err := c.schemas.ValidateMapValue(name, key, value); err != nil {
			return err
		}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		_, err := c.doc.MapSet(ctx, name, key, value)
		return err
	}
	_, err := c.doc.WithTransaction(ctx, document.OriginLocal, func(_ context.Context, tx *document.Transaction) error {
		return setObject(tx, name, []any{key}, obj)
	})
	return err
}

func setObject(tx *document.Transaction, root string, path []any, obj map[string]any) error {
	if len(obj) == 0 {
		return fmt.Errorf("%w: empty object at %v", document.ErrType, path)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		p := append(slices.Clip(path), k)
		if nested, ok := obj[k].(map[string]any); ok {
			if err := setObject(tx, root, p, nested); err != nil {
				return err
			}
			continue
		}
		if err := tx.SetDeep(root, p, obj[k]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMap удаляет ключ
func (c *Client) DeleteMap(ctx context.Context, name, key string) error {
	_, err := c.doc.MapDelete(ctx, name, key)
	return err
}

// Map returns the map container as decoded JSON
func (c *Client) Map(ctx context.Context, name string) (map[string]any, error) {
	raw, err := c.doc.MapGetAll(ctx, name)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode map %q: %w", name, err)
	}
	return out, nil
}

// SetDeep записывает скаляр по пути внутри map. Схема проверяется
// для однокомпонентного пути.
func (c *Client) SetDeep(ctx context.Context, name string, path []string, value any) error {
	if c.schemas != nil && len(path) == 1 {
		if err := c.schemas.ValidateMapValue(name, path[0], value); err != nil {
			return err
		}
	}
	segs := make([]any, len(path))
	for i, p := range path {
		segs[i] = p
	}
	_, err := c.doc.SetDeep(ctx, name, segs, value)
	return err
}

// Push добавляет элемент в конец массива
func (c *Client) Push(ctx context.Context, name string, value any) error {
	if c.schemas != nil {
		if err := c.schemas.ValidateArrayItem(name, value); err != nil {
			return err
		}
	}
	_, err := c.doc.ArrayPush(ctx, name, value)
	return err
}

// InsertArray вставляет элемент в позицию index
func (c *Client) InsertArray(ctx context.Context, name string, index int, value any) error {
	if c.schemas != nil {
		if err := c.schemas.ValidateArrayItem(name, value); err != nil {
			return err
		}
	}
	_, err := c.doc.ArrayInsert(ctx, name, index, value)
	return err
}

// DeleteArray удаляет length элементов начиная с index
func (c *Client) DeleteArray(ctx context.Context, name string, index, length int) error {
	_, err := c.doc.ArrayDelete(ctx, name, index, length)
	return err
}

// Array returns the array container as decoded JSON
func (c *Client) Array(ctx context.Context, name string) ([]any, error) {
	raw, err := c.doc.ArrayGetAll(ctx, name)
	if err != nil {
		return nil, err
	}
	out := []any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode array %q: %w", name, err)
	}
	return out, nil
}

// Containers lists root containers of the document
func (c *Client) Containers(ctx context.Context) ([]document.ContainerInfo, error) {
	return c.doc.Containers(ctx)
}

// Undo отменяет последнюю группу локальных правок.
// Возвращает false, если отменять нечего.
func (c *Client) Undo(ctx context.Context) (bool, error) {
	if !c.undo.CanUndo() {
		return false, nil
	}
	_, err := c.undo.Undo(ctx)
	return err == nil, err
}

// Redo повторяет последнюю отмененную группу
func (c *Client) Redo(ctx context.Context) (bool, error) {
	if !c.undo.CanRedo() {
		return false, nil
	}
	_, err := c.undo.Redo(ctx)
	return err == nil, err
}

// CanUndo reports whether there is something to undo
func (c *Client) CanUndo() bool {
	return c.undo.CanUndo()
}

// CanRedo reports whether there is something to redo
func (c *Client) CanRedo() bool {
	return c.undo.CanRedo()
}

// StopCapturing закрывает текущую группу отмены: следующая правка начнет новую
func (c *Client) StopCapturing() {
	c.undo.StopCapturing()
}
