package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var t0 = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func TestSaveSession_RoundTripThreeSegments(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	session := domain.NewPlaySession("0190a0b2-0000-7000-8000-000000000001", "ep-1", t0, 12.25, 1.0)
	session.ChangeRate(1.5, t0.Add(90*time.Second), 102.125)
	session.ChangeRate(2.0, t0.Add(150*time.Second), 192.5)
	session.Close(t0.Add(200*time.Second), 292.75, true)

	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got.Segments, 3)

	for i := range session.Segments {
		want, have := session.Segments[i], got.Segments[i]
		assert.Equal(t, want.Rate, have.Rate, "segment %d rate", i)
		assert.Equal(t, want.StartPosition, have.StartPosition, "segment %d start position", i)
		assert.True(t, want.StartTime.Equal(have.StartTime), "segment %d start time", i)
		require.NotNil(t, have.EndTime)
		require.NotNil(t, have.EndPosition)
		assert.True(t, want.EndTime.Equal(*have.EndTime), "segment %d end time", i)
		assert.Equal(t, *want.EndPosition, *have.EndPosition, "segment %d end position", i)
	}
	assert.Equal(t, 12.25, got.StartPosition)
	require.NotNil(t, got.EndPosition)
	assert.Equal(t, 292.75, *got.EndPosition)
	require.NotNil(t, got.EndedCleanly)
	assert.True(t, *got.EndedCleanly)
}

func TestGetSession_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOpenSessions_TracksClose(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := domain.NewPlaySession("a", "ep-1", t0, 0, 1.0)
	b := domain.NewPlaySession("b", "ep-2", t0.Add(time.Minute), 0, 1.0)
	require.NoError(t, s.SaveSession(ctx, b))
	require.NoError(t, s.SaveSession(ctx, a))

	open, err := s.ListOpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].ID, "ordered by start time")

	a.Close(t0.Add(30*time.Second), 30, true)
	require.NoError(t, s.SaveSession(ctx, a))

	open, err = s.ListOpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].ID)
}

func TestListSessionsForEpisode(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, ep := range []string{"ep-1", "ep-2", "ep-1"} {
		ps := domain.NewPlaySession(string(rune('a'+i)), ep, t0.Add(time.Duration(i)*time.Minute), float64(i), 1.0)
		require.NoError(t, s.SaveSession(ctx, ps))
	}

	list, err := s.ListSessionsForEpisode(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	_, err = s.ListSessionsForEpisode(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	all, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteSession_RemovesIndexes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ps := domain.NewPlaySession("x", "ep-9", t0, 0, 1.0)
	require.NoError(t, s.SaveSession(ctx, ps))
	require.NoError(t, s.DeleteSession(ctx, "x"))
	require.NoError(t, s.DeleteSession(ctx, "x"))

	open, err := s.ListOpenSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	ok, err := s.Sessions.Exists(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntity_CreateRejectsDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ps := domain.NewPlaySession("dup", "ep-1", t0, 0, 1.0)
	require.NoError(t, s.Sessions.Create(ctx, ps))
	assert.ErrorIs(t, s.Sessions.Create(ctx, ps), ErrAlreadyExists)
}

func TestEntity_CanceledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetSession(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
