package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Entry is one buffered log record. ScanID, Container and RequestID are
// lifted out of the record's attributes, including those bound with With.
type Entry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	ScanID    string    `json:"scan_id,omitempty"`
	Container string    `json:"container,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Text      string    `json:"text"`
}

// Filter selects buffered entries. Empty fields match everything; Level is
// a minimum.
type Filter struct {
	ScanID    string
	Container string
	RequestID string
	Level     string
	Limit     int
}

func (f Filter) match(e Entry) bool {
	if f.ScanID != "" && e.ScanID != f.ScanID {
		return false
	}
	if f.Container != "" && !strings.EqualFold(e.Container, f.Container) {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if f.Level != "" && ParseLevel(e.Level) < ParseLevel(f.Level) {
		return false
	}
	return true
}

// RingBuffer is a thread-safe circular buffer of log entries.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int  // next write position
	full     bool // buffer has wrapped
}

// NewRingBuffer creates a new ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingBuffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add stores e, evicting the oldest entry if full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % rb.capacity
	if rb.head == 0 {
		rb.full = true
	}
}

// Lines returns the text of the last n entries, oldest first.
func (rb *RingBuffer) Lines(n int) []string {
	entries := rb.Entries(Filter{Limit: n})
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Text
	}
	return lines
}

// Entries returns the newest entries matching f, oldest first. A Limit of
// zero or less returns nothing.
func (rb *RingBuffer) Entries(f Filter) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if f.Limit <= 0 {
		return []Entry{}
	}
	total := rb.total()
	start := 0
	if rb.full {
		start = rb.head
	}

	// Walk newest to oldest so Limit keeps the most recent matches.
	var picked []Entry
	for i := total - 1; i >= 0 && len(picked) < f.Limit; i-- {
		e := rb.entries[(start+i)%rb.capacity]
		if f.match(e) {
			picked = append(picked, e)
		}
	}
	result := make([]Entry, len(picked))
	for i, e := range picked {
		result[len(picked)-1-i] = e
	}
	return result
}

// Total returns the number of entries currently in the buffer.
func (rb *RingBuffer) Total() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total()
}

func (rb *RingBuffer) total() int {
	if rb.full {
		return rb.capacity
	}
	return rb.head
}

// Capacity returns the buffer capacity.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// BufferHandler wraps another handler and keeps every record in a ring
// buffer, whatever the wrapped handler's level.
type BufferHandler struct {
	wrapped slog.Handler
	buffer  *RingBuffer
	// attrs bound through WithAttrs outside any group; they feed the
	// Entry id fields.
	bound []slog.Attr
	// chain replays WithAttrs/WithGroup calls on the text formatter.
	chain []func(slog.Handler) slog.Handler
	group bool
}

// NewBufferHandler creates a handler that stores logs in the buffer and forwards to wrapped.
func NewBufferHandler(wrapped slog.Handler, buffer *RingBuffer) *BufferHandler {
	return &BufferHandler{
		wrapped: wrapped,
		buffer:  buffer,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BufferHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle writes the record to the buffer and forwards to the wrapped handler.
func (h *BufferHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	var text slog.Handler = slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: dropNilErrors,
	})
	for _, apply := range h.chain {
		text = apply(text)
	}
	if err := text.Handle(ctx, r); err == nil {
		e := Entry{
			Time:    r.Time,
			Level:   r.Level.String(),
			Message: r.Message,
			Text:    strings.TrimSuffix(buf.String(), "\n"),
		}
		for _, a := range h.bound {
			e.setID(a)
		}
		if !h.group {
			r.Attrs(func(a slog.Attr) bool {
				e.setID(a)
				return true
			})
		}
		h.buffer.Add(e)
	}

	if h.wrapped != nil && h.wrapped.Enabled(ctx, r.Level) {
		return h.wrapped.Handle(ctx, r)
	}
	return nil
}

func (e *Entry) setID(a slog.Attr) {
	switch a.Key {
	case "scan_id":
		e.ScanID = a.Value.String()
	case "container":
		e.Container = a.Value.String()
	case "request_id":
		e.RequestID = a.Value.String()
	}
}

func (h *BufferHandler) clone() *BufferHandler {
	c := *h
	c.bound = append([]slog.Attr(nil), h.bound...)
	c.chain = append([]func(slog.Handler) slog.Handler(nil), h.chain...)
	return &c
}

// WithAttrs returns a new handler with the given attributes.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	if h.wrapped != nil {
		c.wrapped = h.wrapped.WithAttrs(attrs)
	}
	if !h.group {
		c.bound = append(c.bound, attrs...)
	}
	c.chain = append(c.chain, func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
	return c
}

// WithGroup returns a new handler with the given group.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if h.wrapped != nil {
		c.wrapped = h.wrapped.WithGroup(name)
	}
	c.group = true
	c.chain = append(c.chain, func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
	return c
}
