package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic persistence for any domain type stored as JSON.
type Entity[T any] struct {
	store   *Store
	prefix  string
	idOf    func(*T) string
	indexes []Index[T]
}

// Index defines a non-unique secondary index on an entity. keyGen returns the
// index values the entity is listed under; an empty slice removes it from the index.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string, idOf func(*T) string) *Entity[T] {
	return &Entity[T]{
		store:  s,
		prefix: prefix,
		idOf:   idOf,
	}
}

// WithIndex adds a secondary index to the entity.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// Create stores a new entity. Returns ErrAlreadyExists if the id is taken.
func (e *Entity[T]) Create(ctx context.Context, entity *T) error {
	return e.write(ctx, entity, true)
}

// Save creates or replaces an entity and moves its index entries.
func (e *Entity[T]) Save(ctx context.Context, entity *T) error {
	return e.write(ctx, entity, false)
}

func (e *Entity[T]) write(ctx context.Context, entity *T, mustBeNew bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := e.idOf(entity)
	if id == "" {
		return ErrInvalidInput.WithCause(errors.New("empty id"))
	}
	key := entityKey(e.prefix, id)

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		var old *T
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if mustBeNew {
				return ErrAlreadyExists
			}
			old = new(T)
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, old)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal old entity: %w", err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return fmt.Errorf("failed to get existing key: %w", err)
		}

		if old != nil {
			for _, idx := range e.indexes {
				for _, value := range idx.keyGen(old) {
					if err := txn.Delete(indexKey(e.prefix, idx.name, value, id)); err != nil {
						return fmt.Errorf("failed to delete old index key: %w", err)
					}
				}
			}
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}

		for _, idx := range e.indexes {
			for _, value := range idx.keyGen(entity) {
				if err := txn.Set(indexKey(e.prefix, idx.name, value, id), nil); err != nil {
					return fmt.Errorf("failed to set index key: %w", err)
				}
			}
		}
		return nil
	})
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	if err := e.store.get(entityKey(e.prefix, id), &entity); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}

// Exists reports whether an entity with id is stored.
func (e *Entity[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.store.exists(entityKey(e.prefix, id))
}

// Delete deletes an entity and its index entries. Deleting a missing entity is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := entityKey(e.prefix, id)
	return e.store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		var entity T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}

		for _, idx := range e.indexes {
			for _, value := range idx.keyGen(&entity) {
				if err := txn.Delete(indexKey(e.prefix, idx.name, value, id)); err != nil {
					return fmt.Errorf("failed to delete index key: %w", err)
				}
			}
		}
		return txn.Delete(key)
	})
}

// List returns an iterator over all entities in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		marker := []byte(e.prefix + indexMarker)

		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if bytes.HasPrefix(it.Item().Key(), marker) {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					return fmt.Errorf("failed to unmarshal entity: %w", err)
				}

				if !yield(&entity, nil) {
					return errStopIteration
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(nil, err)
		}
	}
}

// ListByIndex returns an iterator over the entities listed under value in the named index.
func (e *Entity[T]) ListByIndex(ctx context.Context, name, value string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		scan := indexPrefix(e.prefix, name, value)

		var ids []string
		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = scan
			opts.PrefetchValues = false // keys only

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
				ids = append(ids, idFromIndexKey(it.Item().KeyCopy(nil), scan))
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}

		for _, id := range ids {
			entity, err := e.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if !yield(entity, err) || err != nil {
				return
			}
		}
	}
}

var errStopIteration = errors.New("stop iteration")
