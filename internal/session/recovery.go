package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

// InferEnd returns the end position for a session left open by an unclean
// shutdown. The earliest later session of the same episode bounds it by its
// start position; without one, the furthest position ever recorded for the
// episode is used. The inference is rejected unless it lies strictly past the
// session's start position.
func InferEnd(open *domain.PlaySession, siblings []*domain.PlaySession, maxPosition float64) (float64, bool) {
	var later *domain.PlaySession
	for _, s := range siblings {
		if s.ID == open.ID || s.EpisodeID != open.EpisodeID {
			continue
		}
		if !s.StartTime.After(open.StartTime) {
			continue
		}
		if later == nil || s.StartTime.Before(later.StartTime) {
			later = s
		}
	}

	end := maxPosition
	if later != nil {
		end = later.StartPosition
	}
	if end <= open.StartPosition {
		return 0, false
	}
	return end, true
}

// RecoveryReport summarizes one reconciliation pass.
type RecoveryReport struct {
	Open       int
	Closed     int
	Unresolved int
	Failed     int
}

// recover closes every session left open by a previous run.
func (t *Tracker) recover(ctx context.Context) RecoveryReport {
	var report RecoveryReport

	open, err := t.journal.ListOpenSessions(ctx)
	if err != nil {
		t.logger.Error("recovery: failed to list open sessions", slog.String("error", err.Error()))
		return report
	}
	report.Open = len(open)

	for _, s := range open {
		if ctx.Err() != nil {
			break
		}

		siblings, err := t.journal.ListSessionsForEpisode(ctx, s.EpisodeID)
		if err != nil {
			t.logger.Warn("recovery: failed to list episode sessions",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()))
			report.Failed++
			continue
		}

		end, ok := InferEnd(s, siblings, t.maxPosition(ctx, s.EpisodeID))
		if !ok {
			t.logger.Info("recovery: leaving session open, no usable end bound",
				slog.String("session_id", s.ID),
				slog.String("episode_id", s.EpisodeID),
				slog.Float64("start_position", s.StartPosition))
			report.Unresolved++
			continue
		}

		s.CloseInferred(end)
		if err := t.save(ctx, s); err != nil {
			report.Failed++
			continue
		}
		report.Closed++

		t.logger.Info("recovery: closed abandoned session",
			slog.String("session_id", s.ID),
			slog.String("episode_id", s.EpisodeID),
			slog.Float64("end_position", end))
		if t.onRecovered != nil {
			t.onRecovered(s)
		}
	}

	return report
}

func (t *Tracker) maxPosition(ctx context.Context, episodeID string) float64 {
	if t.episodes == nil {
		return 0
	}
	ep, err := t.episodes.FetchEpisode(ctx, episodeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.logger.Warn("recovery: failed to fetch episode",
				slog.String("episode_id", episodeID),
				slog.String("error", err.Error()))
		}
		return 0
	}
	return max(ep.MaxPosition, ep.PlayPosition)
}
