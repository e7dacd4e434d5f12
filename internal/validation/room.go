package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// RoomIDPattern определяет допустимый формат идентификатора комнаты
// Латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_), дефис (-) и точка (.)
// Длина: 1-64 символа
var RoomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

const (
	// MaxRoomIDLen максимальная длина идентификатора комнаты
	MaxRoomIDLen = 64
	// MaxContainerNameLen максимальная длина имени контейнера
	MaxContainerNameLen = 128
)

// ValidateRoomID проверяет идентификатор комнаты (документа)
func ValidateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("room id cannot be empty")
	}

	if len(id) > MaxRoomIDLen {
		return fmt.Errorf("room id must not exceed %d characters", MaxRoomIDLen)
	}

	if !RoomIDPattern.MatchString(id) {
		return fmt.Errorf("room id can only contain letters (a-z, A-Z), numbers (0-9), dots, dashes and underscores")
	}

	if id == "." || id == ".." {
		return fmt.Errorf("room id cannot be a relative path")
	}

	return nil
}

// ValidateContainerName проверяет имя корневого контейнера документа
func ValidateContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("container name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("container name must be valid UTF-8")
	}

	if utf8.RuneCountInString(name) > MaxContainerNameLen {
		return fmt.Errorf("container name must not exceed %d characters", MaxContainerNameLen)
	}

	return nil
}
