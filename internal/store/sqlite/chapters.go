package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/id"
)

const chapterColumns = `id, episode_id, idx, start, duration, title, should_play, skipped, skipped_at`

func scanChapter(scanner interface{ Scan(dest ...any) error }) (domain.Chapter, error) {
	var (
		c          domain.Chapter
		duration   sql.NullFloat64
		shouldPlay int
		skipped    int
		skippedAt  sql.NullString
	)

	err := scanner.Scan(&c.ID, &c.EpisodeID, &c.Index, &c.Start, &duration, &c.Title, &shouldPlay, &skipped, &skippedAt)
	if err != nil {
		return c, err
	}

	if duration.Valid {
		d := duration.Float64
		c.Duration = &d
	}
	c.ShouldPlay = shouldPlay != 0
	c.Skipped = skipped != 0
	if c.SkippedAt, err = parseNullableTime(skippedAt); err != nil {
		return c, err
	}
	return c, nil
}

// Chapters returns the chapters of an episode ordered by start.
// An episode without chapters yields an empty slice.
func (s *Store) Chapters(ctx context.Context, episodeID string) ([]domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE episode_id = ? ORDER BY start, idx`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list chapters %s: %w", episodeID, err)
	}
	defer rows.Close()

	out := []domain.Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceChapters swaps the chapter list of an episode in one transaction.
// Chapters without an ID get one; indexes are renumbered in start order.
func (s *Store) ReplaceChapters(ctx context.Context, episodeID string, chapters []domain.Chapter) (err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM chapters WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("clear chapters %s: %w", episodeID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chapter insert: %w", err)
	}
	defer stmt.Close()

	for i := range chapters {
		c := &chapters[i]
		if c.ID == "" {
			c.ID = id.MustGenerate("ch")
		}
		c.EpisodeID = episodeID
		c.Index = i
		if _, err = stmt.ExecContext(ctx,
			c.ID, episodeID, i, c.Start, nullFloat(c.Duration), c.Title,
			boolInt(c.ShouldPlay), boolInt(c.Skipped), nullTimeString(c.SkippedAt),
		); err != nil {
			return fmt.Errorf("insert chapter %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit chapters: %w", err)
	}
	return nil
}

// MarkChapterSkipped records that playback auto-skipped the chapter.
func (s *Store) MarkChapterSkipped(ctx context.Context, chapterID string, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := checkAffected(s.db.ExecContext(ctx,
		`UPDATE chapters SET skipped = 1, skipped_at = ? WHERE id = ?`, formatTime(at), chapterID))
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("mark chapter skipped %s: %w", chapterID, err)
	}
	return err
}

// SetChapterShouldPlay toggles whether the chapter is played or auto-skipped.
func (s *Store) SetChapterShouldPlay(ctx context.Context, chapterID string, shouldPlay bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := checkAffected(s.db.ExecContext(ctx,
		`UPDATE chapters SET should_play = ? WHERE id = ?`, boolInt(shouldPlay), chapterID))
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("set chapter should_play %s: %w", chapterID, err)
	}
	return err
}
