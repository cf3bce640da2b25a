package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const chunkKeyPrefix = "chunk:"

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	Path       string `mapstructure:"path"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// BadgerStore keeps chunks in a BadgerDB key-value store.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path != "":
		opts = badger.DefaultOptions(cfg.Path)
	default:
		return nil, fmt.Errorf("badger chunk store: path is required")
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	slog.Info("opened badger chunk store", "path", cfg.Path, "inMemory", cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

func chunkKey(handle string) []byte {
	return []byte(chunkKeyPrefix + handle)
}

func (s *BadgerStore) Get(_ context.Context, handle string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(handle))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %s: %w", handle, err)
	}
	return data, nil
}

func (s *BadgerStore) Put(_ context.Context, handle string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(handle), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", handle, err)
	}
	return nil
}

func (s *BadgerStore) Delete(_ context.Context, handle string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chunkKey(handle))
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", handle, err)
	}
	return nil
}

// Handles lists every stored chunk handle.
func (s *BadgerStore) Handles() ([]string, error) {
	var handles []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			handles = append(handles, string(it.Item().Key()[len(chunkKeyPrefix):]))
		}
		return nil
	})
	return handles, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
