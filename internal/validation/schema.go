package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema indicates that a value does not satisfy the container schema
var ErrSchema = errors.New("schema validation failed")

// mapSchema - схемы полей map: properties и additionalProperties.
type mapSchema struct {
	fields     map[string]*gojsonschema.Schema
	additional *gojsonschema.Schema
	closed     bool
}

// Schemas хранит JSON Schema для именованных контейнеров документа.
// Схема типа "object" проверяет значения ключей map, схема типа "array" - элементы массива.
type Schemas struct {
	maps   map[string]*mapSchema
	arrays map[string]*gojsonschema.Schema
}

// NewSchemas создает пустой набор схем
func NewSchemas() *Schemas {
	return &Schemas{
		maps:   make(map[string]*mapSchema),
		arrays: make(map[string]*gojsonschema.Schema),
	}
}

// Register регистрирует JSON Schema для контейнера name.
func (s *Schemas) Register(name string, schema []byte) error {
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema)); err != nil {
		return fmt.Errorf("failed to load schema for %s: %w", name, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(schema, &raw); err != nil {
		return fmt.Errorf("failed to parse schema for %s: %w", name, err)
	}

	switch raw["type"] {
	case "object":
		ms := &mapSchema{fields: make(map[string]*gojsonschema.Schema)}
		props, _ := raw["properties"].(map[string]any)
		for key, sub := range props {
			compiled, err := compile(sub)
			if err != nil {
				return fmt.Errorf("failed to load schema for %s.%s: %w", name, key, err)
			}
			ms.fields[key] = compiled
		}
		switch extra := raw["additionalProperties"].(type) {
		case bool:
			ms.closed = !extra
		case map[string]any:
			compiled, err := compile(extra)
			if err != nil {
				return fmt.Errorf("failed to load schema for %s additional properties: %w", name, err)
			}
			ms.additional = compiled
		}
		s.maps[name] = ms
	case "array":
		items, ok := raw["items"].(map[string]any)
		if !ok {
			return fmt.Errorf("schema for %s: array schema must define items", name)
		}
		compiled, err := compile(items)
		if err != nil {
			return fmt.Errorf("failed to load schema for %s items: %w", name, err)
		}
		s.arrays[name] = compiled
	default:
		return fmt.Errorf("schema for %s: unsupported type %v", name, raw["type"])
	}
	return nil
}

// LoadDir регистрирует все файлы *.json из каталога dir.
// Имя контейнера - имя файла без расширения.
func (s *Schemas) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", file, err)
		}
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if err := s.Register(name, data); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMapValue проверяет значение ключа map.
// Ключ, не описанный в схеме, допускается, если схема не запрещает дополнительные поля.
func (s *Schemas) ValidateMapValue(name, key string, value any) error {
	ms, ok := s.maps[name]
	if !ok {
		return nil
	}
	schema, ok := ms.fields[key]
	switch {
	case ok:
	case ms.additional != nil:
		schema = ms.additional
	case ms.closed:
		return fmt.Errorf("%w: map %q does not allow key %q", ErrSchema, name, key)
	default:
		return nil
	}
	return check(schema, value, fmt.Sprintf("map %q key %q", name, key))
}

// ValidateArrayItem проверяет новый элемент массива
func (s *Schemas) ValidateArrayItem(name string, value any) error {
	schema, ok := s.arrays[name]
	if !ok {
		return nil
	}
	return check(schema, value, fmt.Sprintf("array %q item", name))
}

func compile(sub any) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(sub))
}

func check(schema *gojsonschema.Schema, value any, what string) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", what, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrSchema, what, strings.Join(msgs, "; "))
	}
	return nil
}
