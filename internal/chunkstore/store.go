// Package chunkstore holds the bytes of file chunks, keyed by chunk handle.
package chunkstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ErrChunkNotFound is returned by Get for an unknown handle.
var ErrChunkNotFound = errors.New("chunk not found")

// Store persists chunk data. A chunk is written whole; the metaserver does
// the read-modify-write for partial updates.
type Store interface {
	Get(ctx context.Context, handle string) ([]byte, error)
	Put(ctx context.Context, handle string, data []byte) error
	// Delete removes a chunk. Deleting an unknown handle is not an error.
	Delete(ctx context.Context, handle string) error
	Close() error
}

// Lister is implemented by stores that can enumerate their chunks.
type Lister interface {
	Handles() ([]string, error)
}

var (
	_ Lister = (*MemoryStore)(nil)
	_ Lister = (*BadgerStore)(nil)
)

// Config selects a store implementation. Only the map matching Type is read.
type Config struct {
	Type   string         `mapstructure:"type" validate:"required,oneof=memory badger s3"`
	Badger map[string]any `mapstructure:"badger"`
	S3     map[string]any `mapstructure:"s3"`
}

// New creates the store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		var badgerCfg BadgerConfig
		if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		return NewBadgerStore(badgerCfg)
	case "s3":
		var s3Cfg S3Config
		if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
			return nil, fmt.Errorf("invalid s3 config: %w", err)
		}
		return NewS3Store(ctx, s3Cfg)
	default:
		return nil, fmt.Errorf("unknown chunk store type: %q", cfg.Type)
	}
}
