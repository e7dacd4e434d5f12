// Package config загружает настройки сервера и клиента.
// Порядок применения: значения по умолчанию, YAML-файл, переменные окружения, флаги.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Переменные окружения
const (
	EnvServerAddr = "YOIN_SERVER_ADDR"
	EnvDBPath     = "YOIN_DB_PATH"
	EnvServerURL  = "YOIN_SERVER_URL"
)

// ErrInvalid indicates a configuration value outside its allowed range
var ErrInvalid = errors.New("invalid configuration")

// Server - настройки сервера синхронизации.
type Server struct {
	Addr                string        `yaml:"addr"`
	DBPath              string        `yaml:"db_path"`
	LogLevel            string        `yaml:"log_level"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	CompactionThreshold int           `yaml:"compaction_threshold"`
	RateLimit           int           `yaml:"rate_limit"` // запросов в минуту с одного IP
}

// Client - настройки клиента.
type Client struct {
	ServerURL         string        `yaml:"server_url"`
	DBPath            string        `yaml:"db_path"`
	Room              string        `yaml:"room"`
	SchemaDir         string        `yaml:"schema_dir"`
	LogLevel          string        `yaml:"log_level"`
	SaveDebounce      time.Duration `yaml:"save_debounce"`
	AwarenessThrottle time.Duration `yaml:"awareness_throttle"`
	MaxReconnect      time.Duration `yaml:"max_reconnect_interval"`
	SyncTimeout       time.Duration `yaml:"sync_timeout"`
}

// DefaultServer returns the server defaults
func DefaultServer() Server {
	return Server{
		Addr:                ":8080",
		DBPath:              "yoin-server.db",
		LogLevel:            "info",
		ShutdownTimeout:     10 * time.Second,
		CompactionThreshold: 50,
		RateLimit:           600,
	}
}

// DefaultClient returns the client defaults
func DefaultClient() Client {
	return Client{
		ServerURL:         "ws://localhost:8080",
		DBPath:            "yoin-client.db",
		Room:              "default",
		LogLevel:          "warn",
		SaveDebounce:      time.Second,
		AwarenessThrottle: 30 * time.Millisecond,
		MaxReconnect:      30 * time.Second,
		SyncTimeout:       5 * time.Second,
	}
}

// LoadServer читает настройки сервера из YAML-файла path (может быть пустым)
// и применяет переменные окружения.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := decodeFile(path, &cfg); err != nil {
		return Server{}, err
	}
	if v, ok := os.LookupEnv(EnvServerAddr); ok {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv(EnvDBPath); ok {
		cfg.DBPath = v
	}
	return cfg, cfg.Validate()
}

// LoadClient читает настройки клиента из YAML-файла path (может быть пустым)
// и применяет переменные окружения.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if err := decodeFile(path, &cfg); err != nil {
		return Client{}, err
	}
	if v, ok := os.LookupEnv(EnvServerURL); ok {
		cfg.ServerURL = v
	}
	if v, ok := os.LookupEnv(EnvDBPath); ok {
		cfg.DBPath = v
	}
	return cfg, cfg.Validate()
}

func decodeFile(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks server settings
func (c Server) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	case c.CompactionThreshold <= 0:
		return fmt.Errorf("%w: compaction_threshold must be positive, got %d", ErrInvalid, c.CompactionThreshold)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalid)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalid)
	}
	return nil
}

// Validate checks client settings
func (c Client) Validate() error {
	switch {
	case c.ServerURL == "":
		return fmt.Errorf("%w: server_url is empty", ErrInvalid)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	case c.Room == "":
		return fmt.Errorf("%w: room is empty", ErrInvalid)
	case c.SaveDebounce < 0 || c.AwarenessThrottle < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	case c.MaxReconnect <= 0:
		return fmt.Errorf("%w: max_reconnect_interval must be positive", ErrInvalid)
	}
	return nil
}

// ParseLevel разбирает уровень логирования (debug, info, warn, error).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return level, nil
}
