package log

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferHandler_KeepsScanAttrsFromWith(t *testing.T) {
	buf := NewRingBuffer(10)
	logger := slog.New(NewBufferHandler(nil, buf))

	scanLogger := logger.With("scan_id", "scan-1", "container", "APP.BILLING")
	scanLogger.Debug("scan started")
	scanLogger.Warn("skipping catalog row", "row", 3, "error", errors.New("unknown literal"))
	logger.Info("unrelated", "request_id", "req-9")

	entries := buf.Entries(Filter{Limit: 10})
	require.Len(t, entries, 3)

	assert.Equal(t, "scan-1", entries[0].ScanID)
	assert.Equal(t, "APP.BILLING", entries[0].Container)
	assert.Equal(t, "DEBUG", entries[0].Level)
	assert.Contains(t, entries[0].Text, "scan_id=scan-1")

	assert.Equal(t, "scan started", entries[0].Message)
	assert.Contains(t, entries[1].Text, `error="unknown literal"`)
	assert.Equal(t, "req-9", entries[2].RequestID)
	assert.Empty(t, entries[2].ScanID)
}

func TestBufferHandler_GroupedAttrsAreNotIDs(t *testing.T) {
	buf := NewRingBuffer(10)
	logger := slog.New(NewBufferHandler(nil, buf)).WithGroup("http").With("scan_id", "nested")

	logger.Info("grouped")
	e := buf.Entries(Filter{Limit: 1})
	require.Len(t, e, 1)
	assert.Empty(t, e[0].ScanID)
	assert.Contains(t, e[0].Text, "http.scan_id=nested")
}

func TestRingBuffer_FilterByScanAndContainer(t *testing.T) {
	buf := NewRingBuffer(20)
	for i := 0; i < 6; i++ {
		scan := fmt.Sprintf("scan-%d", i%2)
		container := "APP"
		if i%2 == 1 {
			container = "LEGACY"
		}
		buf.Add(Entry{Level: "INFO", Message: fmt.Sprint(i), ScanID: scan, Container: container})
	}

	got := buf.Entries(Filter{ScanID: "scan-1", Limit: 10})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"1", "3", "5"}, messages(got))

	got = buf.Entries(Filter{Container: "legacy", Limit: 2})
	assert.Equal(t, []string{"3", "5"}, messages(got), "limit keeps the newest matches")

	assert.Empty(t, buf.Entries(Filter{ScanID: "missing", Limit: 10}))
}

func TestRingBuffer_FilterByLevel(t *testing.T) {
	buf := NewRingBuffer(10)
	buf.Add(Entry{Level: "DEBUG", Message: "d"})
	buf.Add(Entry{Level: "WARN", Message: "w"})
	buf.Add(Entry{Level: "ERROR", Message: "e"})

	assert.Equal(t, []string{"w", "e"}, messages(buf.Entries(Filter{Level: "warn", Limit: 10})))
}

func TestRingBuffer_Wraps(t *testing.T) {
	buf := NewRingBuffer(3)
	for _, m := range []string{"one", "two", "three", "four"} {
		buf.Add(Entry{Message: m, Text: m})
	}

	assert.Equal(t, 3, buf.Total())
	assert.Equal(t, []string{"two", "three", "four"}, buf.Lines(10))
	assert.Equal(t, []string{"four"}, buf.Lines(1))
	assert.Empty(t, buf.Lines(0))
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 500, NewRingBuffer(0).Capacity())
	assert.Equal(t, 500, NewRingBuffer(-1).Capacity())
}

func TestBufferHandler_ForwardsByWrappedLevel(t *testing.T) {
	buf := NewRingBuffer(10)
	var out bytes.Buffer
	wrapped := slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(NewBufferHandler(wrapped, buf)).With("scan_id", "s")

	logger.Info("kept only in buffer")
	logger.Error("forwarded")

	assert.Equal(t, 2, buf.Total())
	assert.NotContains(t, out.String(), "kept only in buffer")
	assert.Contains(t, out.String(), "scan_id=s")
}

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
