package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeInstance_CreatesOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetInstance(ctx)
	require.True(t, errors.Is(err, ErrNotFound))

	first, err := s.InitializeInstance(ctx, "Kitchen", "1.0.0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ID, "player-"), first.ID)
	assert.Equal(t, "Kitchen", first.Name)

	second, err := s.InitializeInstance(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Kitchen", second.Name)
}

func TestInitializeInstance_RefreshesNameAndVersion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.InitializeInstance(ctx, "Kitchen", "1.0.0")
	require.NoError(t, err)

	updated, err := s.InitializeInstance(ctx, "Garage", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "Garage", updated.Name)
	assert.Equal(t, "1.1.0", updated.Version)
	assert.True(t, first.CreatedAt.Equal(updated.CreatedAt))

	stored, err := s.GetInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Garage", stored.Name)
}
