package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadServer("")
		require.NoError(t, err)
		assert.Equal(t, DefaultServer(), cfg)
	})

	t.Run("file", func(t *testing.T) {
		path := writeFile(t, "addr: \":9000\"\ncompaction_threshold: 10\nshutdown_timeout: 3s\n")
		cfg, err := LoadServer(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, 10, cfg.CompactionThreshold)
		assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, DefaultServer().DBPath, cfg.DBPath)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeFile(t, "addr: \":9000\"\n")
		t.Setenv(EnvServerAddr, ":7000")
		t.Setenv(EnvDBPath, "/tmp/rooms.db")
		cfg, err := LoadServer(path)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.Addr)
		assert.Equal(t, "/tmp/rooms.db", cfg.DBPath)
	})

	t.Run("empty file", func(t *testing.T) {
		cfg, err := LoadServer(writeFile(t, ""))
		require.NoError(t, err)
		assert.Equal(t, DefaultServer(), cfg)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadServer(writeFile(t, "adr: \":9000\"\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadServer(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := LoadServer(writeFile(t, "compaction_threshold: 0\n"))
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestLoadClient(t *testing.T) {
	path := writeFile(t, "room: notes\nsave_debounce: 250ms\nawareness_throttle: 50ms\n")
	t.Setenv(EnvServerURL, "ws://example.com:8080")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.Room)
	assert.Equal(t, 250*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, 50*time.Millisecond, cfg.AwarenessThrottle)
	assert.Equal(t, "ws://example.com:8080", cfg.ServerURL)

	_, err = LoadClient(writeFile(t, "room: \"\"\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "loud", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}
