package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		Close()
		Init(&Config{Mode: "console", Level: "info"})
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "console", cfg.Mode)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "routinecat.log", cfg.FilePath)
	assert.Equal(t, "routinecat-log.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, 500, cfg.BufferLines)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestInit_BufferedEntriesByScan(t *testing.T) {
	resetLogger(t)
	require.NoError(t, Init(&Config{Mode: "console", Level: "error", BufferLines: 50}))

	With("scan_id", "s1", "container", "APP").Debug("scan started")
	With("scan_id", "s2", "container", "LEGACY").Warn("skipping catalog row", "row", 0)
	Info("container refreshed", "container", "APP")

	entries := BufferedEntries(Filter{Container: "APP", Limit: 10})
	require.Len(t, entries, 2)
	assert.Equal(t, "s1", entries[0].ScanID)
	assert.Empty(t, entries[1].ScanID)

	assert.Len(t, GetBufferedLogs(10), 3)
	total, capacity, ok := GetBufferStats()
	assert.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, 50, capacity)
}

func TestInit_BufferDisabled(t *testing.T) {
	resetLogger(t)
	require.NoError(t, Init(&Config{Mode: "console", Level: "info"}))

	assert.Nil(t, GetBufferedLogs(10))
	assert.Nil(t, BufferedEntries(Filter{Limit: 10}))
	_, _, ok := GetBufferStats()
	assert.False(t, ok)
}

func TestInit_ReplacesAndClosesFileHandler(t *testing.T) {
	resetLogger(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, Init(&Config{Mode: "file", Level: "info", FilePath: first, MaxSizeMB: 1}))
	Info("to first")
	require.NoError(t, Init(&Config{Mode: "file", Level: "info", FilePath: second, MaxSizeMB: 1}))
	Info("to second")
	require.NoError(t, Close())
	assert.NoError(t, Close())

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(a), "to first")
	assert.NotContains(t, string(a), "to second")
	assert.Contains(t, string(b), "to second")
}
