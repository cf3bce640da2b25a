package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// OpType represents the type of operation in the WAL
type OpType string

const (
	OpCreateFile OpType = "CREATE_FILE"
	OpMkdir      OpType = "MKDIR"
	OpRemove     OpType = "REMOVE"
	OpRename     OpType = "RENAME"
	OpChmod      OpType = "CHMOD"
	OpTruncate   OpType = "TRUNCATE"
	OpAddChunk   OpType = "ADD_CHUNK"
	OpSetSize    OpType = "SET_SIZE"
)

// Entry represents a single WAL entry
type Entry struct {
	Op   OpType          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// CreateFileData represents data for CREATE_FILE operation
type CreateFileData struct {
	Path   string     `json:"path"`
	ID     int64      `json:"id"`
	Mode   uint32     `json:"mode"`
	Layout kfs.Layout `json:"layout"`
	Time   time.Time  `json:"time"`
}

// MkdirData represents data for MKDIR operation
type MkdirData struct {
	Path string    `json:"path"`
	ID   int64     `json:"id"`
	Mode uint32    `json:"mode"`
	Time time.Time `json:"time"`
}

// RemoveData represents data for REMOVE operation. A directory is removed
// with everything below it.
type RemoveData struct {
	Path string    `json:"path"`
	Time time.Time `json:"time"`
}

// RenameData represents data for RENAME operation
type RenameData struct {
	OldPath string    `json:"old_path"`
	NewPath string    `json:"new_path"`
	Time    time.Time `json:"time"`
}

// ChmodData represents data for CHMOD operation
type ChmodData struct {
	ID   int64     `json:"id"`
	Mode uint32    `json:"mode"`
	Time time.Time `json:"time"`
}

// TruncateData represents data for TRUNCATE operation
type TruncateData struct {
	ID   int64     `json:"id"`
	Time time.Time `json:"time"`
}

// AddChunkData represents data for ADD_CHUNK operation
type AddChunkData struct {
	ID          int64  `json:"id"`
	Index       int    `json:"index"`
	ChunkHandle string `json:"chunk_handle"`
}

// SetSizeData represents data for SET_SIZE operation
type SetSizeData struct {
	ID   int64     `json:"id"`
	Size int64     `json:"size"`
	Time time.Time `json:"time"`
}

// WAL is a write-ahead log for the metaserver namespace
type WAL struct {
	file *os.File
	mu   sync.Mutex
	path string
}

// New creates a new WAL at the given path
func New(path string) (*WAL, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	return &WAL{
		file: file,
		path: path,
	}, nil
}

// Path returns the file backing the WAL
func (w *WAL) Path() string {
	return w.path
}

// Close closes the WAL file
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *WAL) append(op OpType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s data: %w", op, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(Entry{Op: op, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal WAL entry: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("failed to write WAL entry: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	return nil
}

// LogCreateFile logs a CREATE_FILE operation
func (w *WAL) LogCreateFile(d CreateFileData) error {
	return w.append(OpCreateFile, d)
}

// LogMkdir logs a MKDIR operation
func (w *WAL) LogMkdir(d MkdirData) error {
	return w.append(OpMkdir, d)
}

// LogRemove logs a REMOVE operation
func (w *WAL) LogRemove(d RemoveData) error {
	return w.append(OpRemove, d)
}

// LogRename logs a RENAME operation
func (w *WAL) LogRename(d RenameData) error {
	return w.append(OpRename, d)
}

// LogChmod logs a CHMOD operation
func (w *WAL) LogChmod(d ChmodData) error {
	return w.append(OpChmod, d)
}

// LogTruncate logs a TRUNCATE operation
func (w *WAL) LogTruncate(d TruncateData) error {
	return w.append(OpTruncate, d)
}

// LogAddChunk logs an ADD_CHUNK operation
func (w *WAL) LogAddChunk(d AddChunkData) error {
	return w.append(OpAddChunk, d)
}

// LogSetSize logs a SET_SIZE operation
func (w *WAL) LogSetSize(d SetSizeData) error {
	return w.append(OpSetSize, d)
}

// Reader provides an interface for replaying WAL entries
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader creates a reader to replay WAL entries
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No WAL file, nothing to replay
		}
		return nil, fmt.Errorf("failed to open WAL for reading: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	return &Reader{
		scanner: scanner,
		file:    file,
	}, nil
}

// Close closes the reader
func (r *Reader) Close() error {
	if r != nil && r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadAll reads all entries from the WAL
func (r *Reader) ReadAll() ([]Entry, error) {
	if r == nil {
		return nil, nil
	}

	var entries []Entry
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("skipping malformed WAL entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := r.scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error reading WAL: %w", err)
	}

	return entries, nil
}
