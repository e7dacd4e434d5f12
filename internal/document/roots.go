package document

import (
	"fmt"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/cespare/xxhash/v2"
)

// Kind - тип именованного контейнера.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindMap
	KindArray
)

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known container kinds
func (k Kind) Valid() bool {
	return k >= KindText && k <= KindArray
}

// kindOf возвращает тип контейнера, хранимого в корневом ключе.
func kindOf(v *automerge.Value) (Kind, bool) {
	switch v.Kind() {
	case automerge.KindText:
		return KindText, true
	case automerge.KindMap:
		return KindMap, true
	case automerge.KindList:
		return KindArray, true
	default:
		return 0, false
	}
}

// Корневой контейнер создается изменением-генезисом без зависимостей с фиксированными
// actor и временем. Реплики, независимо создающие контейнер с тем же именем и типом,
// получают байт-в-байт одинаковое изменение, и automerge склеивает их в одно.
const genesisPrefix = "796f696e" // "yoin"

var genesisTime = time.Unix(0, 0).UTC()

func genesisActor(name string, kind Kind) string {
	return fmt.Sprintf("%s%016x", genesisPrefix, xxhash.Sum64String(kind.String()+"/"+name))
}

// genesis строит изменение, создающее корневой контейнер name типа kind.
func genesis(name string, kind Kind) ([]*automerge.Change, error) {
	g := automerge.New()
	if err := g.SetActorID(genesisActor(name, kind)); err != nil {
		return nil, fmt.Errorf("failed to set genesis actor: %w", err)
	}

	var obj any
	switch kind {
	case KindText:
		obj = automerge.NewText("")
	case KindMap:
		obj = automerge.NewMap()
	case KindArray:
		obj = automerge.NewList()
	default:
		return nil, fmt.Errorf("%w: %s", ErrType, kind)
	}
	if err := g.RootMap().Set(name, obj); err != nil {
		return nil, fmt.Errorf("failed to create container %q: %w", name, err)
	}
	if _, err := g.Commit("", automerge.CommitOptions{Time: &genesisTime}); err != nil {
		return nil, fmt.Errorf("failed to commit container %q: %w", name, err)
	}
	return g.Changes()
}

// presentRoots возвращает контейнеры, уже материализованные в документе.
// Корневые ключи со скалярами (возможны только в чужих обновлениях) пропускаются.
func presentRoots(doc *automerge.Doc) (map[string]Kind, error) {
	values, err := doc.RootMap().Values()
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	out := make(map[string]Kind, len(values))
	for name, v := range values {
		if kind, ok := kindOf(v); ok {
			out[name] = kind
		}
	}
	return out, nil
}
