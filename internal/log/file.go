package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// fileSink owns the log file. It is shared by a FileHandler and every
// handler derived from it, so a rotation is seen by all of them.
type fileSink struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64 // bytes
	maxAge     int   // days, 0 keeps backups forever
	maxBackups int
	size       int64
}

func (s *fileSink) Write(p []byte) (int, error) {
	if s.file == nil {
		return 0, os.ErrClosed
	}
	n, err := s.file.Write(p)
	s.size += int64(n)
	return n, err
}

// FileHandler writes logs to a file and rotates it by size.
type FileHandler struct {
	sink  *fileSink
	level slog.Level
	inner slog.Handler
}

// NewFileHandler creates a file handler. Backups beyond cfg.MaxBackups or
// older than cfg.RetentionDays are removed on rotation.
func NewFileHandler(cfg *Config, level slog.Level) (*FileHandler, error) {
	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxSize < 1024 {
		maxSize = 1024
	}

	sink := &fileSink{
		file:       file,
		path:       cfg.FilePath,
		maxSize:    maxSize,
		maxAge:     cfg.RetentionDays,
		maxBackups: cfg.MaxBackups,
		size:       info.Size(),
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: dropNilErrors}
	var inner slog.Handler
	if cfg.Format == "json" {
		inner = slog.NewJSONHandler(sink, opts)
	} else {
		inner = slog.NewTextHandler(sink, opts)
	}
	return &FileHandler{sink: sink, level: level, inner: inner}, nil
}

// Enabled reports whether the handler handles records at the given level.
func (h *FileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle writes the record, rotating the file first if it is full.
func (h *FileHandler) Handle(ctx context.Context, r slog.Record) error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	if h.sink.file == nil {
		return os.ErrClosed
	}
	if h.sink.size >= h.sink.maxSize {
		if err := h.sink.rotate(); err != nil {
			return err
		}
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes.
func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FileHandler{sink: h.sink, level: h.level, inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the given group.
func (h *FileHandler) WithGroup(name string) slog.Handler {
	return &FileHandler{sink: h.sink, level: h.level, inner: h.inner.WithGroup(name)}
}

// rotate renames the current file with a timestamp suffix and opens a new
// one. Callers hold s.mu.
func (s *fileSink) rotate() error {
	s.file.Close()

	backupPath := s.path + "." + time.Now().Format("2006-01-02T15-04-05.000")
	if err := os.Rename(s.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	s.cleanOldBackups()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return fmt.Errorf("create new log file: %w", err)
	}
	s.file = file
	s.size = 0
	return nil
}

// cleanOldBackups removes backups beyond maxBackups or older than maxAge.
func (s *fileSink) cleanOldBackups() {
	matches, err := filepath.Glob(s.path + ".*")
	if err != nil {
		return
	}

	// Backup names sort by their timestamp suffix; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	cutoff := time.Now().AddDate(0, 0, -s.maxAge)
	for i, path := range matches {
		if i >= s.maxBackups {
			os.Remove(path)
			continue
		}
		if s.maxAge <= 0 {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}

// Close closes the log file. It is safe to call more than once.
func (h *FileHandler) Close() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	if h.sink.file == nil {
		return nil
	}
	err := h.sink.file.Close()
	h.sink.file = nil
	return err
}

// Closeable is implemented by handlers holding a file or database.
type Closeable interface {
	Close() error
}
