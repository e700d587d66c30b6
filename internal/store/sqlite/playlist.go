package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// NextEpisode returns the episode at the head of the playlist and removes it.
// An empty playlist yields "".
func (s *Store) NextEpisode(ctx context.Context) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var episodeID string
	err := s.db.QueryRowContext(ctx,
		`SELECT episode_id FROM playlist ORDER BY position, added_at LIMIT 1`).Scan(&episodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("peek playlist: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlist WHERE episode_id = ?`, episodeID); err != nil {
		return "", fmt.Errorf("pop playlist: %w", err)
	}
	return episodeID, nil
}

// AddToPlaylist inserts the episode at the front or end of the playlist.
// An episode already queued is moved.
func (s *Store) AddToPlaylist(ctx context.Context, episodeID string, at domain.QueuePosition) error {
	if !at.Valid() {
		return fmt.Errorf("add to playlist: unknown position %q", at)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	expr := `COALESCE(MAX(position), -1) + 1`
	if at == domain.QueueFront {
		expr = `COALESCE(MIN(position), 1) - 1`
	}

	// The subquery is evaluated before the upsert so a moved entry's old
	// position still counts. That only leaves a gap, which Playlist renumbers.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist (episode_id, position, added_at)
		VALUES (?, (SELECT `+expr+` FROM playlist WHERE episode_id <> ?), ?)
		ON CONFLICT(episode_id) DO UPDATE SET position = excluded.position, added_at = excluded.added_at`,
		episodeID, episodeID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("add to playlist %s: %w", episodeID, err)
	}
	return nil
}

// RemoveFromPlaylist drops the episode from the playlist. Removing an absent entry is not an error.
func (s *Store) RemoveFromPlaylist(ctx context.Context, episodeID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlist WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("remove from playlist %s: %w", episodeID, err)
	}
	return nil
}

// Playlist returns the queued entries in play order, positions numbered from 0.
func (s *Store) Playlist(ctx context.Context) ([]domain.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id, added_at FROM playlist ORDER BY position, added_at`)
	if err != nil {
		return nil, fmt.Errorf("list playlist: %w", err)
	}
	defer rows.Close()

	out := []domain.QueueEntry{}
	for rows.Next() {
		var (
			e       domain.QueueEntry
			addedAt string
		)
		if err := rows.Scan(&e.EpisodeID, &addedAt); err != nil {
			return nil, fmt.Errorf("scan playlist entry: %w", err)
		}
		if e.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, fmt.Errorf("parse added_at: %w", err)
		}
		e.Position = len(out)
		out = append(out, e)
	}
	return out, rows.Err()
}
