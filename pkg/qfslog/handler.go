package qfslog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Entry is one record as written to the log file.
type Entry struct {
	Time       time.Time         `json:"time"`
	Level      string            `json:"level"`
	Source     string            `json:"source,omitempty"`
	Message    string            `json:"msg"`
	Attributes map[string]string `json:"attrs,omitempty"`
}

// MarshalLine encodes the entry as one JSON line.
func (e *Entry) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Handler is a slog.Handler that hands records to a channel without blocking.
// Records are dropped when the channel is full.
type Handler struct {
	source   string
	entryCh  chan<- *Entry
	minLevel slog.Level
	attrs    []slog.Attr
	groups   []string
}

// NewHandler creates a new Handler feeding entryCh.
func NewHandler(source string, minLevel slog.Level, entryCh chan<- *Entry) *Handler {
	return &Handler{
		source:   source,
		entryCh:  entryCh,
		minLevel: minLevel,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

// Handle handles the Record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	entry := h.recordToEntry(r)
	select {
	case h.entryCh <- entry:
	default:
	}
	return nil
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := *h
	newH.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &newH
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	newH := *h
	newH.groups = append(append([]string(nil), h.groups...), name)
	return &newH
}

func (h *Handler) recordToEntry(r slog.Record) *Entry {
	entry := &Entry{
		Time:       r.Time,
		Level:      LevelName(r.Level),
		Source:     h.source,
		Message:    r.Message,
		Attributes: make(map[string]string),
	}

	for _, attr := range h.attrs {
		entry.Attributes[attr.Key] = attr.Value.String()
	}

	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		for i := len(h.groups) - 1; i >= 0; i-- {
			key = h.groups[i] + "." + key
		}
		entry.Attributes[key] = a.Value.String()
		return true
	})

	return entry
}
