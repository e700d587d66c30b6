package coordinator

import (
	"context"
	"log/slog"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/engine"
	"github.com/listenupapp/listenup-player/internal/sse"
)

// onSample handles one engine position sample for the given run.
func (c *Coordinator) onSample(ctx context.Context, run uint64, s engine.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run != c.run || c.episode == nil {
		return
	}
	if s.Ended {
		c.handleEnded(ctx, s.Position)
		return
	}

	c.state.Position = s.Position
	if s.Rate > 0 {
		c.state.Rate = s.Rate
	}

	// Auto-skip fires only when the chapter changed since the last tick, so a
	// sample that lands back inside a just-skipped chapter cannot jump twice.
	idx := chapters.CurrentIndex(s.Position, c.chapterSet)
	changed := idx != c.chapterIdx
	c.chapterIdx = idx
	c.resolve()
	if changed && idx >= 0 && !c.chapterSet[idx].ShouldPlay {
		c.autoSkip(ctx, idx)
	}

	c.sessions.Heartbeat(c.state.Position)

	c.ticks++
	if c.ticks%c.persistEvery == 0 {
		c.commitPosition(c.state.Position)
	}
}

// resolve recomputes chapter references and progress from the position and
// publishes a chapter event when the current chapter changed. Caller holds mu.
func (c *Coordinator) resolve() {
	prev := c.state.Current
	res := chapters.Resolve(c.state.Position, c.chapterSet, c.state.Duration)
	c.state.Current = res.Current
	c.state.Next = res.Next
	c.state.Previous = res.Previous
	c.state.ChapterProgress = res.Progress

	if !prev.SameAs(res.Current) {
		c.events.Emit(sse.NewChapterEvent(c.snapshot()))
	}
}

// autoSkip jumps to the end of chapter idx and marks it skipped in the
// background. Without an end bound the skip is suppressed. Caller holds mu.
func (c *Coordinator) autoSkip(ctx context.Context, idx int) {
	ch := &c.chapterSet[idx]
	from := c.state.Position

	end, ok := chapters.End(idx, c.chapterSet, c.state.Duration)
	if !ok || end <= from {
		c.logger.Debug("auto-skip suppressed, chapter has no end",
			slog.String("episode_id", c.state.EpisodeID),
			slog.String("chapter", ch.Title))
		return
	}

	if err := c.player.Seek(context.WithoutCancel(ctx), end); err != nil {
		c.logger.Warn("auto-skip seek failed",
			slog.String("chapter", ch.Title),
			slog.String("error", err.Error()))
		return
	}

	// chapterIdx keeps pointing at the skipped chapter: the next tick past the
	// boundary reports the following chapter as a change, a tick still inside
	// does not.
	c.state.Position = end
	at := c.now()
	ch.Skipped = true
	ch.SkippedAt = &at

	c.logger.Info("chapter auto-skipped",
		slog.String("episode_id", c.state.EpisodeID),
		slog.String("chapter", ch.Title),
		slog.Float64("from", from),
		slog.Float64("to", end))
	c.events.Emit(sse.NewChapterSkippedEvent(c.state.EpisodeID, ch.Title, from, end))

	if ch.ID == "" {
		return
	}
	chapterID := ch.ID
	c.wg.Go(func() {
		if err := c.chapters.MarkChapterSkipped(context.WithoutCancel(c.ctx), chapterID, at); err != nil {
			c.logger.Warn("failed to mark chapter skipped",
				slog.String("chapter_id", chapterID),
				slog.String("error", err.Error()))
		}
	})
}

// handleEnded finalizes the finished episode and plays the next queued one.
// Queue entries that cannot be played are dropped. Caller holds mu.
func (c *Coordinator) handleEnded(ctx context.Context, position float64) {
	ctx = context.WithoutCancel(ctx)

	c.stopRun()
	c.state.Position = position
	c.setPhase(domain.PhaseFinished)
	c.finalize(c.episode, position, true)
	c.clear(domain.PhaseFinished)

	for {
		next, err := c.playlist.NextEpisode(ctx)
		if err != nil {
			c.logger.Warn("failed to read next queue entry", slog.String("error", err.Error()))
			return
		}
		if next == "" {
			c.logger.Info("queue exhausted")
			c.emitQueue(ctx)
			return
		}
		if err := c.playEpisode(ctx, next, true); err != nil {
			c.logger.Warn("failed to play next episode",
				slog.String("episode_id", next),
				slog.String("error", err.Error()))
		}
		if c.episode != nil {
			return
		}
	}
}
