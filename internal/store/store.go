// Package store persists the listening-session journal in Badger.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/sse"
)

// EventEmitter broadcasts changes without depending on the SSE implementation.
type EventEmitter interface {
	Emit(event sse.Event)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ sse.Event) {}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Sessions *Entity[domain.PlaySession]
}

// New opens the journal at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // A crash must not lose the last session write
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// OpenReadOnly opens an existing journal for inspection. It fails while a
// player holds the journal open.
func OpenReadOnly(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithReadOnly(true)
	opts.Logger = nil
	return open(opts, logger)
}

// NewInMemory opens a journal that lives only for the life of the process.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initSessions()

	if logger != nil {
		logger.Info("session journal opened", "path", opts.Dir, "in_memory", opts.InMemory)
	}
	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing session journal")
	}
	return s.db.Close()
}

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type fanout []EventEmitter

func (f fanout) Emit(event sse.Event) {
	for _, e := range f {
		e.Emit(event)
	}
}

// Fanout returns an emitter that forwards every event to each of emitters in order.
// Nil emitters are skipped.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var f fanout
	for _, e := range emitters {
		if e != nil {
			f = append(f, e)
		}
	}
	return f
}
