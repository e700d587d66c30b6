package coordinator

import (
	"context"
	"log/slog"
	"math"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/engine"
	"github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/store"
)

var errStopped = errors.Unavailable("playback coordinator stopped")

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, errors.ErrNotFound)
}

// PlayEpisode makes id the active episode. A different active episode is
// finalized first: played when past the finish threshold, otherwise put back
// at the front of the queue. The new episode resumes at its saved position and
// leaves the queue. With playDirectly set, playback starts immediately.
// An unknown id is a logged no-op.
func (c *Coordinator) PlayEpisode(ctx context.Context, id string, playDirectly bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playEpisode(ctx, id, playDirectly)
}

func (c *Coordinator) playEpisode(ctx context.Context, id string, playDirectly bool) error {
	if c.stopped {
		return errStopped
	}
	ep, err := c.episodes.FetchEpisode(ctx, id)
	if err != nil {
		if isNotFound(err) {
			c.logger.Info("episode not found, ignoring play request", slog.String("episode_id", id))
			return nil
		}
		return errors.Wrapf(err, errors.CodeInternal, "fetch episode %s", id)
	}
	if ep.Source == "" {
		c.logger.Warn("episode has no playable source", slog.String("episode_id", id))
		return nil
	}

	if c.episode != nil && c.episode.ID == id {
		if playDirectly {
			return c.resume(ctx)
		}
		return nil
	}

	prev := c.episode
	prevPhase := c.state.Phase
	prevPos := 0.0
	if prev != nil {
		prevPos = c.refreshPosition(ctx)
		c.stopRun()
		c.setPhase(domain.PhaseSwitching)
		if err := c.player.Pause(ctx); err != nil {
			c.logger.Warn("failed to pause before switch", slog.String("error", err.Error()))
		}
	} else {
		c.setPhase(domain.PhaseLoading)
	}

	item, err := c.player.ReplaceItem(ctx, ep.Source)
	if err != nil {
		// The engine kept the previous item; so does the coordinator.
		c.logger.Warn("failed to load episode",
			slog.String("episode_id", id),
			slog.String("error", err.Error()))
		c.restoreAfterFailedLoad(ctx, prev, prevPhase)
		return err
	}

	if prev != nil {
		c.finalize(prev, prevPos, false)
	}

	c.load(ctx, ep, item)
	if playDirectly {
		return c.resume(ctx)
	}
	return nil
}

func (c *Coordinator) restoreAfterFailedLoad(ctx context.Context, prev *domain.Episode, prevPhase domain.Phase) {
	if prev == nil {
		c.setPhase(domain.PhaseIdle)
		return
	}
	if prevPhase != domain.PhasePlaying {
		c.setPhase(prevPhase)
		return
	}
	if err := c.player.Play(ctx); err != nil {
		c.logger.Warn("failed to resume previous episode", slog.String("error", err.Error()))
		c.setPhase(domain.PhasePaused)
		c.sessions.Pause(c.state.Position)
		return
	}
	c.startRun()
	c.setPhase(domain.PhasePlaying)
}

// finalize does the bookkeeping for an episode that stops being active.
// ended forces the played outcome: a track that ran out is finished even when
// its duration was never known. Caller holds mu with ep still active.
func (c *Coordinator) finalize(ep *domain.Episode, position float64, ended bool) {
	ctx := context.WithoutCancel(c.ctx)
	now := c.now()

	c.sessions.End(position, false)
	c.commitPosition(position)
	if err := c.episodes.SetLastPlayed(ctx, ep.ID, now); err != nil {
		c.logger.Warn("failed to record last played", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
	}

	progress := domain.ProgressAt(position, c.state.Duration)
	if ended || progress > c.finishThreshold {
		if err := c.episodes.MarkAsPlayed(ctx, ep.ID, now); err != nil {
			c.logger.Warn("failed to mark episode played", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
		}
		if err := c.playlist.RemoveFromPlaylist(ctx, ep.ID); err != nil {
			c.logger.Warn("failed to remove episode from queue", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
		}
		c.logger.Info("episode finished",
			slog.String("episode_id", ep.ID),
			slog.Float64("progress", progress))
	} else {
		if err := c.playlist.AddToPlaylist(ctx, ep.ID, domain.QueueFront); err != nil {
			c.logger.Warn("failed to requeue episode", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
		}
		c.logger.Info("episode queued to resume later",
			slog.String("episode_id", ep.ID),
			slog.Float64("progress", progress))
	}
	c.emitQueue(ctx)
}

// load makes ep the active episode, paused at its saved position. Caller holds mu.
func (c *Coordinator) load(ctx context.Context, ep *domain.Episode, item engine.Item) {
	chs, err := c.chapters.Chapters(ctx, ep.ID)
	if err != nil {
		c.logger.Warn("failed to load chapters", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
		chs = nil
	}
	c.applyRules(ctx, ep, chs)

	duration := ep.Duration
	if duration <= 0 {
		duration = item.Duration
	}

	start := ep.PlayPosition
	if start < 0 || (duration > 0 && start >= duration) {
		start = 0
	}
	if start > 0 {
		if err := c.player.Seek(context.WithoutCancel(ctx), start); err != nil {
			c.logger.Warn("failed to seek to saved position",
				slog.String("episode_id", ep.ID),
				slog.Float64("position", start),
				slog.String("error", err.Error()))
			start = 0
		}
	}

	if err := c.playlist.RemoveFromPlaylist(ctx, ep.ID); err != nil {
		c.logger.Warn("failed to remove episode from queue", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
	}

	rate := c.state.Rate
	if st, err := c.player.Status(ctx); err == nil && st.Rate > 0 {
		rate = st.Rate
	}

	c.episode = ep
	c.chapterSet = chs
	c.state = domain.PlaybackState{
		EpisodeID:    ep.ID,
		Title:        ep.Title,
		PodcastTitle: ep.PodcastTitle,
		Phase:        domain.PhaseReady,
		Position:     start,
		Duration:     duration,
		Rate:         rate,
	}
	c.events.Emit(sse.NewEpisodeEvent(ep, len(chs)))
	c.resolve()
	c.chapterIdx = unknownChapter

	c.logger.Info("episode loaded",
		slog.String("episode_id", ep.ID),
		slog.Float64("position", start),
		slog.Float64("duration", duration),
		slog.Int("chapters", len(chs)))

	c.events.Emit(sse.NewStateEvent(c.state))
	c.emitQueue(ctx)
}

// applyRules disables chapters whose titles match an auto-skip rule and persists the flag.
func (c *Coordinator) applyRules(ctx context.Context, ep *domain.Episode, chs []domain.Chapter) {
	if c.rules.Len() == 0 || len(chs) == 0 {
		return
	}
	for _, i := range c.rules.Apply(ep.PodcastTitle, chs) {
		ch := chs[i]
		c.logger.Debug("auto-skip rule matched",
			slog.String("episode_id", ep.ID),
			slog.String("chapter", ch.Title))
		if ch.ID == "" {
			continue
		}
		if err := c.chapters.SetChapterShouldPlay(ctx, ch.ID, false); err != nil {
			c.logger.Warn("failed to persist auto-skip flag",
				slog.String("chapter_id", ch.ID),
				slog.String("error", err.Error()))
		}
	}
}

// clear drops the active episode. Caller holds mu.
func (c *Coordinator) clear(phase domain.Phase) {
	c.stopRun()
	c.episode = nil
	c.chapterSet = nil
	c.chapterIdx = unknownChapter
	c.state = domain.PlaybackState{Phase: phase, Rate: c.state.Rate}
	c.events.Emit(sse.NewStateEvent(c.state))
}

// Resume starts or continues playback of the active episode. No-op when
// nothing is loaded or already playing.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume(ctx)
}

func (c *Coordinator) resume(ctx context.Context) error {
	if c.stopped {
		return errStopped
	}
	if c.episode == nil || c.state.Phase == domain.PhasePlaying {
		return nil
	}
	if err := c.player.Play(ctx); err != nil {
		return err
	}
	pos := c.refreshPosition(ctx)
	c.sessions.StartOrUpdate(c.episode.ID, pos, c.state.Rate)
	c.registerRemote()
	c.startRun()
	c.setPhase(domain.PhasePlaying)
	return nil
}

// Pause stops playback and commits the position. Pausing while not playing is a no-op.
func (c *Coordinator) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pause(ctx)
}

func (c *Coordinator) pause(ctx context.Context) error {
	if c.episode == nil || c.state.Phase != domain.PhasePlaying {
		return nil
	}
	c.stopRun()
	if err := c.player.Pause(ctx); err != nil {
		c.startRun()
		return err
	}
	pos := c.refreshPosition(ctx)
	c.commitPosition(pos)
	c.sessions.Pause(pos)
	c.setPhase(domain.PhasePaused)
	return nil
}

// TogglePlayPause pauses when playing and resumes otherwise.
func (c *Coordinator) TogglePlayPause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhasePlaying {
		return c.pause(ctx)
	}
	return c.resume(ctx)
}

// Stop ends playback of the active episode and unloads it. The episode is
// finalized exactly as on a switch.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.episode == nil {
		return nil
	}
	pos := c.refreshPosition(ctx)
	c.stopRun()
	if err := c.player.Pause(ctx); err != nil {
		c.logger.Warn("failed to pause on stop", slog.String("error", err.Error()))
	}
	c.finalize(c.episode, pos, false)
	c.clear(domain.PhaseIdle)
	return nil
}

// SetRate changes the playback rate, clamped to [MinRate, MaxRate].
func (c *Coordinator) SetRate(ctx context.Context, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(rate) {
		return errors.Validation("rate must be a number")
	}
	rate = min(max(rate, MinRate), MaxRate)
	if err := c.player.SetRate(ctx, rate); err != nil {
		return err
	}
	c.state.Rate = rate
	if c.episode != nil && c.state.Phase == domain.PhasePlaying {
		pos := c.refreshPosition(ctx)
		c.sessions.StartOrUpdate(c.episode.ID, pos, rate)
	}
	c.events.Emit(sse.NewStateEvent(c.state))
	return nil
}

// Seek moves to position, clamped to [0, duration]. No-op when nothing is loaded.
func (c *Coordinator) Seek(ctx context.Context, position float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode == nil {
		return nil
	}
	return c.seek(ctx, position)
}

// SkipForward seeks seconds ahead; seconds <= 0 uses the configured default.
func (c *Coordinator) SkipForward(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode == nil {
		return nil
	}
	if seconds <= 0 {
		seconds = c.skipForward
	}
	return c.seek(ctx, c.refreshPosition(ctx)+seconds)
}

// SkipBack seeks seconds back; seconds <= 0 uses the configured default.
func (c *Coordinator) SkipBack(ctx context.Context, seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode == nil {
		return nil
	}
	if seconds <= 0 {
		seconds = c.skipBack
	}
	return c.seek(ctx, c.refreshPosition(ctx)-seconds)
}

// SkipToChapterStart restarts the current chapter, or goes to the previous
// chapter when already within two seconds of the current start.
func (c *Coordinator) SkipToChapterStart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode == nil {
		return nil
	}
	return c.seek(ctx, chapterStartTarget(c.refreshPosition(ctx), c.chapterSet))
}

func chapterStartTarget(position float64, chs []domain.Chapter) float64 {
	idx := chapters.CurrentIndex(position, chs)
	if idx < 0 {
		return 0
	}
	current := chs[idx]
	if position-current.Start >= chapterRestartWindow {
		return current.Start
	}
	if idx > 0 {
		return chs[idx-1].Start
	}
	return 0
}

// seek issues a seek that survives cancellation of ctx. Caller holds mu.
func (c *Coordinator) seek(ctx context.Context, position float64) error {
	if c.stopped {
		return errStopped
	}
	position = c.clamp(position)
	if err := c.player.Seek(context.WithoutCancel(ctx), position); err != nil {
		return err
	}
	c.state.Position = position
	c.resolve()
	if c.state.Phase != domain.PhasePlaying {
		c.commitPosition(position)
	}
	return nil
}

func (c *Coordinator) clamp(position float64) float64 {
	position = max(position, 0)
	if c.state.Duration > 0 {
		position = min(position, c.state.Duration)
	}
	return position
}

// RemoteCommands returns the callbacks handed to now-playing sinks.
func (c *Coordinator) RemoteCommands() nowplaying.RemoteCommands {
	return nowplaying.RemoteCommands{
		Play:            c.Resume,
		Pause:           c.Pause,
		TogglePlayPause: c.TogglePlayPause,
		Seek:            c.Seek,
		SkipForward:     c.SkipForward,
		SkipBack:        c.SkipBack,
		ChapterStart:    c.SkipToChapterStart,
	}
}

// registerRemote hands remote commands to the registrar once. Caller holds mu.
func (c *Coordinator) registerRemote() {
	if c.registered || c.remote == nil {
		return
	}
	c.remote.RegisterRemoteCommands(c.RemoteCommands())
	c.registered = true
}

func (c *Coordinator) handleInterruption(i engine.Interruption) {
	ctx := context.WithoutCancel(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch i {
	case engine.InterruptionBegan:
		err = c.pause(ctx)
	case engine.InterruptionResume:
		err = c.resume(ctx)
	case engine.InterruptionEnded:
		c.events.Emit(sse.NewStateEvent(c.state))
	case engine.InterruptionFinished:
		err = c.pause(ctx)
		c.sessions.End(c.state.Position, false)
	}
	if err != nil {
		c.logger.Warn("failed to handle interruption",
			slog.String("interruption", i.String()),
			slog.String("error", err.Error()))
	}
}
