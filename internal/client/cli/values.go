package cli

import (
	"encoding/json"
	"strings"
)

// ParseValue разбирает аргумент команды как JSON: число, bool, строку в кавычках
// или объект. Все остальное, включая null и массивы, остается строкой.
func ParseValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return s
	}
	switch v.(type) {
	case float64, bool, string, map[string]any:
		return v
	default:
		return s
	}
}
