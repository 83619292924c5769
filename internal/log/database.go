package log

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const createLogsTableSQL = `
CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    source TEXT,
    request_id TEXT,
    scan_id TEXT,
    container TEXT,
    extra TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_scan_id ON logs(scan_id);
`

// dbSink is the connection shared by a DBHandler and its derived handlers.
type dbSink struct {
	mu            sync.Mutex
	db            *sql.DB
	stmt          *sql.Stmt
	retention     int
	cleanupTicker *time.Ticker
	done          chan struct{}
}

// DBHandler writes logs to a SQLite database. Attributes named request_id,
// scan_id and container get their own columns so a scan's log lines can be
// pulled back by id.
type DBHandler struct {
	sink   *dbSink
	fields map[string]bool
	level  slog.Level
	attrs  []slog.Attr
	group  string
}

// NewDBHandler creates a database handler.
func NewDBHandler(cfg *Config, level slog.Level) (*DBHandler, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}

	if _, err := db.Exec(createLogsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create logs table: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO logs (timestamp, level, message, source, request_id, scan_id, container, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	fields := make(map[string]bool)
	for _, f := range cfg.Fields {
		fields[f] = true
	}

	sink := &dbSink{
		db:        db,
		stmt:      stmt,
		retention: cfg.RetentionDays,
		done:      make(chan struct{}),
	}
	sink.startCleanup()

	return &DBHandler{sink: sink, fields: fields, level: level}, nil
}

// Enabled reports whether the handler handles records at the given level.
func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle writes the record to the database.
func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	var source, requestID, scanID, container, extra sql.NullString

	if h.fields["source"] && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		source = sql.NullString{String: fmt.Sprintf("%s:%d", f.File, f.Line), Valid: true}
	}

	extraData := make(map[string]any)
	visit := func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			requestID = sql.NullString{String: a.Value.String(), Valid: true}
		case "scan_id":
			scanID = sql.NullString{String: a.Value.String(), Valid: true}
		case "container":
			container = sql.NullString{String: a.Value.String(), Valid: true}
		default:
			if h.fields["extra"] {
				key := a.Key
				if h.group != "" {
					key = h.group + "." + key
				}
				extraData[key] = a.Value.Resolve().Any()
			}
		}
		return true
	}
	for _, a := range h.attrs {
		visit(a)
	}
	r.Attrs(visit)

	if !h.fields["request_id"] {
		requestID = sql.NullString{}
	}
	if h.fields["extra"] && len(extraData) > 0 {
		data, _ := json.Marshal(extraData)
		extra = sql.NullString{String: string(data), Valid: true}
	}

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, err := h.sink.stmt.ExecContext(ctx,
		r.Time.Format(time.RFC3339),
		r.Level.String(),
		r.Message,
		source,
		requestID,
		scanID,
		container,
		extra,
	)
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes extra keys with name.
func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (s *dbSink) startCleanup() {
	s.cleanupTicker = time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.runCleanup()
			case <-s.done:
				return
			}
		}
	}()
}

// runCleanup deletes entries older than the retention period.
func (s *dbSink) runCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -s.retention)
	s.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff.Format(time.RFC3339))
}

// Close closes the database shared by h and every handler derived from it.
func (h *DBHandler) Close() error {
	s := h.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.cleanupTicker.Stop()
	s.stmt.Close()
	return s.db.Close()
}
