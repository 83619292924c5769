package log

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openLogDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBHandler_WritesRequestLine(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "routinecat-log.db")
	h, err := NewDBHandler(&Config{DBPath: dbPath, RetentionDays: 7, Fields: []string{"source", "request_id"}}, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	logger := slog.New(h)
	logger.Debug("below level")
	logger.Info("http request", "path", "/api/schemas", "request_id", "abc123")

	db := openLogDB(t, dbPath)
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&count))
	assert.Equal(t, 1, count)

	var msg, level, reqID string
	var source sql.NullString
	require.NoError(t, db.QueryRow("SELECT message, level, request_id, source FROM logs").Scan(&msg, &level, &reqID, &source))
	assert.Equal(t, "http request", msg)
	assert.Equal(t, "INFO", level)
	assert.Equal(t, "abc123", reqID)
	assert.True(t, source.Valid)
}

func TestDBHandler_Retention(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "routinecat-log.db")
	h, err := NewDBHandler(&Config{DBPath: dbPath, RetentionDays: 0}, slog.LevelInfo)
	require.NoError(t, err)
	defer h.Close()

	db := openLogDB(t, dbPath)
	old := time.Now().AddDate(0, 0, -1).Format(time.RFC3339)
	_, err = db.Exec("INSERT INTO logs (timestamp, level, message, scan_id) VALUES (?, 'INFO', 'scan finished', 'old-scan')", old)
	require.NoError(t, err)

	h.sink.runCleanup()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&count))
	assert.Zero(t, count)
}

func TestDBHandler_WithAttrsKeepsScanColumns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "routinecat-log.db")
	h, err := NewDBHandler(&Config{DBPath: dbPath, RetentionDays: 7, Fields: []string{"extra"}}, slog.LevelDebug)
	require.NoError(t, err)
	defer h.Close()

	scanLogger := slog.New(h).With("scan_id", "scan-1", "container", "APP")
	scanLogger.Warn("skipping catalog row", "row", 4)
	slog.New(h).With("scan_id", "scan-2", "container", "LEGACY").Info("scan finished")

	db := openLogDB(t, dbPath)
	var container, extra string
	require.NoError(t, db.QueryRow("SELECT container, extra FROM logs WHERE scan_id = ?", "scan-1").Scan(&container, &extra))
	assert.Equal(t, "APP", container)
	assert.JSONEq(t, `{"row":4}`, extra)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM logs WHERE container = 'LEGACY'").Scan(&n))
	assert.Equal(t, 1, n)
	assert.NoError(t, h.Close())
}
