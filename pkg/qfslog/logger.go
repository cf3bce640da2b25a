// Package qfslog builds the slog loggers used by qfs binaries and the SDK.
package qfslog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	// LevelTrace sits below Debug and carries call entry and exit records.
	LevelTrace = slog.Level(-8)

	// TraceEnv turns tracing on when set to anything but a false value.
	TraceEnv = "QFS_TRACE"

	bufferSize = 1000
)

var traceFromEnv = sync.OnceValue(func() bool {
	return parseTrace(os.LookupEnv(TraceEnv))
})

func parseTrace(v string, set bool) bool {
	if !set {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}

// TraceFromEnv reports whether QFS_TRACE enables tracing. The environment
// is read once per process.
func TraceFromEnv() bool {
	return traceFromEnv()
}

// Logger wraps slog.Logger with an optional asynchronous log file.
type Logger struct {
	*slog.Logger
	file    *os.File
	entryCh chan *Entry
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Config holds configuration for creating a new Logger.
type Config struct {
	Source   string
	MinLevel slog.Level
	// Format is "text" (default) or "json".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// File mirrors every record as JSON lines when set.
	File string
}

// NewLogger creates a Logger writing to cfg.Output and, when cfg.File is set,
// to that file as well.
func NewLogger(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.MinLevel, ReplaceAttr: replaceLevel}

	var primary slog.Handler
	switch cfg.Format {
	case "", "text":
		primary = slog.NewTextHandler(out, opts)
	case "json":
		primary = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	if cfg.Source != "" {
		primary = primary.WithAttrs([]slog.Attr{slog.String("source", cfg.Source)})
	}

	logger := &Logger{}
	handlers := []slog.Handler{primary}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.file = f
		logger.entryCh = make(chan *Entry, bufferSize)
		logger.stop = make(chan struct{})
		logger.done = make(chan struct{})
		handlers = append(handlers, NewHandler(cfg.Source, cfg.MinLevel, logger.entryCh))
		go logger.runWriter()
	}

	if len(handlers) == 1 {
		logger.Logger = slog.New(primary)
	} else {
		logger.Logger = slog.New(&multiHandler{handlers: handlers})
	}
	return logger, nil
}

// Close flushes and closes the log file, if any. Records logged afterwards
// only reach the primary output.
func (l *Logger) Close() {
	l.once.Do(func() {
		if l.file == nil {
			return
		}
		close(l.stop)
		<-l.done
		l.file.Close()
	})
}

func (l *Logger) runWriter() {
	defer close(l.done)
	w := bufio.NewWriter(l.file)
	write := func(entry *Entry) {
		if data, err := entry.MarshalLine(); err == nil {
			w.Write(data)
		}
	}
	for {
		select {
		case entry := <-l.entryCh:
			write(entry)
			if len(l.entryCh) == 0 {
				w.Flush()
			}
		case <-l.stop:
			for {
				select {
				case entry := <-l.entryCh:
					write(entry)
				default:
					w.Flush()
					return
				}
			}
		}
	}
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(lvl))
		}
	}
	return a
}

// LevelName renders a level, naming LevelTrace "TRACE".
func LevelName(l slog.Level) string {
	if l <= LevelTrace {
		return "TRACE"
	}
	return l.String()
}

// multiHandler sends log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			// Ignore errors - we want to send to all handlers
			h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
