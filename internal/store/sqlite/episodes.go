package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

var errNotFound = store.ErrNotFound

// episodeColumns is the ordered list of columns selected in episode queries.
// Must match the scan order in scanEpisode.
const episodeColumns = `id, title, podcast_title, source, duration,
	play_position, max_position, last_played_at, played, played_at, created_at, updated_at`

// scanEpisode scans a sql.Row (or sql.Rows via its Scan method) into a domain.Episode.
func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*domain.Episode, error) {
	var e domain.Episode

	var (
		played     int
		lastPlayed sql.NullString
		playedAt   sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&e.ID,
		&e.Title,
		&e.PodcastTitle,
		&e.Source,
		&e.Duration,
		&e.PlayPosition,
		&e.MaxPosition,
		&lastPlayed,
		&played,
		&playedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Played = played != 0

	if e.LastPlayedAt, err = parseNullableTime(lastPlayed); err != nil {
		return nil, err
	}
	if e.PlayedAt, err = parseNullableTime(playedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

// FetchEpisode returns the episode snapshot, or store.ErrNotFound.
func (s *Store) FetchEpisode(ctx context.Context, id string) (*domain.Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	e, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch episode %s: %w", id, err)
	}
	return e, nil
}

// FetchEpisodeBySource looks an episode up by its media source.
func (s *Store) FetchEpisodeBySource(ctx context.Context, source string) (*domain.Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE source = ?`, source)
	e, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch episode by source: %w", err)
	}
	return e, nil
}

// ListEpisodes returns all episodes, most recently added first.
func (s *Store) ListEpisodes(ctx context.Context) ([]*domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEpisode inserts an episode or refreshes its catalog fields.
// Listening progress (positions, played flags) is never overwritten.
func (s *Store) UpsertEpisode(ctx context.Context, e *domain.Episode) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, title, podcast_title, source, duration,
			play_position, max_position, last_played_at, played, played_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			podcast_title = excluded.podcast_title,
			source = excluded.source,
			duration = excluded.duration,
			updated_at = excluded.updated_at`,
		e.ID, e.Title, e.PodcastTitle, e.Source, e.Duration,
		e.PlayPosition, max(e.MaxPosition, e.PlayPosition), nullTimeString(e.LastPlayedAt),
		boolInt(e.Played), nullTimeString(e.PlayedAt),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert episode %s: %w", e.ID, err)
	}
	return nil
}

// SetPlayPosition stores the resume position and raises the furthest position reached.
func (s *Store) SetPlayPosition(ctx context.Context, id string, position float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := checkAffected(s.db.ExecContext(ctx, `
		UPDATE episodes
		SET play_position = ?, max_position = MAX(max_position, ?), updated_at = ?
		WHERE id = ?`,
		position, position, formatTime(s.now()), id))
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("set play position %s: %w", id, err)
	}
	return err
}

// SetLastPlayed records when the episode was last listened to.
func (s *Store) SetLastPlayed(ctx context.Context, id string, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := checkAffected(s.db.ExecContext(ctx,
		`UPDATE episodes SET last_played_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(s.now()), id))
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("set last played %s: %w", id, err)
	}
	return err
}

// MarkAsPlayed flags the episode as finished and moves it into history.
func (s *Store) MarkAsPlayed(ctx context.Context, id string, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := checkAffected(s.db.ExecContext(ctx, `
		UPDATE episodes
		SET played = 1, played_at = ?, last_played_at = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(at), formatTime(at), formatTime(s.now()), id))
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("mark as played %s: %w", id, err)
	}
	return err
}

// ListHistory returns played episodes, most recently finished first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]*domain.Episode, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE played = 1 ORDER BY played_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*domain.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
