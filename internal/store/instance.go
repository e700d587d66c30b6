package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/id"
)

const instanceKey = "instance:player"

// GetInstance retrieves the player instance record.
func (s *Store) GetInstance(ctx context.Context) (*domain.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var instance domain.Instance
	if err := s.get([]byte(instanceKey), &instance); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &instance, nil
}

// InitializeInstance returns the instance record, creating it on first run.
// Name and version are refreshed from the arguments when they are not empty.
func (s *Store) InitializeInstance(ctx context.Context, name, version string) (*domain.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exists, err := s.exists([]byte(instanceKey))
	if err != nil {
		return nil, fmt.Errorf("check instance: %w", err)
	}

	now := time.Now().UTC()
	instance := &domain.Instance{CreatedAt: now}
	if exists {
		if instance, err = s.GetInstance(ctx); err != nil {
			return nil, err
		}
	} else {
		if instance.ID, err = id.Generate("player"); err != nil {
			return nil, fmt.Errorf("generate instance id: %w", err)
		}
	}

	changed := !exists
	if name != "" && name != instance.Name {
		instance.Name, changed = name, true
	}
	if version != "" && version != instance.Version {
		instance.Version, changed = version, true
	}
	if !changed {
		return instance, nil
	}
	instance.UpdatedAt = now

	data, err := json.Marshal(instance)
	if err != nil {
		return nil, fmt.Errorf("marshal instance: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(instanceKey), data)
	}); err != nil {
		return nil, fmt.Errorf("save instance: %w", err)
	}

	if s.logger != nil && !exists {
		s.logger.Info("player instance created", "instance_id", instance.ID, "name", instance.Name)
	}
	return instance, nil
}
