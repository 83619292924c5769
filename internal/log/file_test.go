package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandler_Write(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "routinecat.log")

	h, err := NewFileHandler(&Config{FilePath: logPath, Format: "text", MaxSizeMB: 1, MaxBackups: 3}, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	slog.New(h).With("scan_id", "s1").Info("scan finished", "routines", 4)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="scan finished" scan_id=s1 routines=4`)
}

func TestFileHandler_DerivedLoggersShareRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "routinecat.log")

	// MaxSizeMB 0 falls back to the 1KB minimum.
	h, err := NewFileHandler(&Config{FilePath: logPath, Format: "text", MaxBackups: 2}, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	base := slog.New(h)
	scanLogger := base.With("scan_id", "s1", "container", "APP")
	for i := 0; i < 100; i++ {
		base.Info("request", "path", "/api/schemas", "i", i)
		scanLogger.Info("skipping catalog row", "row", i)
	}

	backups, err := filepath.Glob(logPath + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
	assert.LessOrEqual(t, len(backups), 2)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Less(t, len(data), 2048, "current file should have been rotated")
	assert.True(t, strings.Contains(string(data), "row=99") || strings.Contains(string(data), "i=99"))
}

func TestFileHandler_CloseIsIdempotent(t *testing.T) {
	h, err := NewFileHandler(&Config{FilePath: filepath.Join(t.TempDir(), "x.log")}, slog.LevelInfo)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.Error(t, slog.New(h).Handler().Handle(t.Context(), slog.Record{Message: "late"}))
}
