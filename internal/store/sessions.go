package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/listenupapp/listenup-player/internal/domain"
)

const (
	sessionPrefix = "session:"

	sessionIndexEpisode = "episode"
	sessionIndexOpen    = "open"
)

func (s *Store) initSessions() {
	s.Sessions = NewEntity(s, sessionPrefix, func(ps *domain.PlaySession) string { return ps.ID }).
		WithIndex(sessionIndexEpisode, func(ps *domain.PlaySession) []string {
			return []string{ps.EpisodeID}
		}).
		WithIndex(sessionIndexOpen, func(ps *domain.PlaySession) []string {
			if ps.IsOpen() {
				return []string{"1"}
			}
			return nil
		})
}

// SaveSession creates or replaces a session record.
func (s *Store) SaveSession(ctx context.Context, session *domain.PlaySession) error {
	if err := s.Sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.PlaySession, error) {
	return s.Sessions.Get(ctx, id)
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.Sessions.Delete(ctx, id)
}

// ListOpenSessions returns every session without an end time, oldest first.
func (s *Store) ListOpenSessions(ctx context.Context) ([]*domain.PlaySession, error) {
	return collectSessions(s.Sessions.ListByIndex(ctx, sessionIndexOpen, "1"))
}

// ListSessionsForEpisode returns the sessions of one episode, oldest first.
func (s *Store) ListSessionsForEpisode(ctx context.Context, episodeID string) ([]*domain.PlaySession, error) {
	if episodeID == "" {
		return nil, ErrInvalidInput.WithCause(errors.New("empty episode id"))
	}
	return collectSessions(s.Sessions.ListByIndex(ctx, sessionIndexEpisode, episodeID))
}

// ListSessions returns all sessions, oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]*domain.PlaySession, error) {
	return collectSessions(s.Sessions.List(ctx))
}

func collectSessions(seq iter.Seq2[*domain.PlaySession, error]) ([]*domain.PlaySession, error) {
	var out []*domain.PlaySession
	for session, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	slices.SortStableFunc(out, func(a, b *domain.PlaySession) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return out, nil
}
