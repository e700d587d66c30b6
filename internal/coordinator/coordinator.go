// Package coordinator turns engine position samples into episode playback
// state: chapter tracking, auto-skip, throttled progress persistence, queue
// advancement and the episode switch/finish bookkeeping.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/engine"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/store"
)

// Rate bounds accepted by SetRate.
const (
	MinRate = 0.5
	MaxRate = 3.0
)

// chapterRestartWindow is how close to a chapter start skipToChapterStart
// treats the position as "at the boundary" and goes one chapter further back.
const chapterRestartWindow = 2.0

// Player is the part of the engine the coordinator drives.
type Player interface {
	ReplaceItem(ctx context.Context, source string) (engine.Item, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	SetRate(ctx context.Context, rate float64) error
	Status(ctx context.Context) (engine.Status, error)
	PositionStream(ctx context.Context, interval time.Duration) <-chan engine.Sample
	OnInterruption(h engine.Handler)
}

// EpisodeStore reads episode snapshots and records progress.
type EpisodeStore interface {
	FetchEpisode(ctx context.Context, id string) (*domain.Episode, error)
	SetPlayPosition(ctx context.Context, id string, position float64) error
	SetLastPlayed(ctx context.Context, id string, at time.Time) error
	MarkAsPlayed(ctx context.Context, id string, at time.Time) error
}

// PlaylistStore holds the pending queue.
type PlaylistStore interface {
	NextEpisode(ctx context.Context) (string, error)
	AddToPlaylist(ctx context.Context, episodeID string, at domain.QueuePosition) error
	RemoveFromPlaylist(ctx context.Context, episodeID string) error
	Playlist(ctx context.Context) ([]domain.QueueEntry, error)
}

// ChapterStore reads chapter lists and records chapter flags.
type ChapterStore interface {
	Chapters(ctx context.Context, episodeID string) ([]domain.Chapter, error)
	MarkChapterSkipped(ctx context.Context, chapterID string, at time.Time) error
	SetChapterShouldPlay(ctx context.Context, chapterID string, shouldPlay bool) error
}

// SessionRecorder is the session tracker's command surface.
type SessionRecorder interface {
	StartOrUpdate(episodeID string, position, rate float64)
	Heartbeat(position float64)
	Pause(position float64)
	End(position float64, terminated bool)
}

// RemoteRegistrar accepts remote-control callbacks.
type RemoteRegistrar interface {
	RegisterRemoteCommands(cmds nowplaying.RemoteCommands)
}

// Config wires a Coordinator.
type Config struct {
	Player   Player
	Episodes EpisodeStore
	Playlist PlaylistStore
	Chapters ChapterStore
	Sessions SessionRecorder
	Events   store.EventEmitter
	Remote   RemoteRegistrar
	Rules    *chapters.RuleSet
	Logger   *slog.Logger
	Now      func() time.Time

	// TickInterval is the position sampling interval. Defaults to 500ms.
	TickInterval time.Duration
	// PersistEvery commits the position every N ticks. Defaults to 10.
	PersistEvery int
	// SkipForward and SkipBack are the default relative skips in seconds.
	SkipForward float64
	SkipBack    float64
	// FinishThreshold is the progress above which a switched-away episode
	// counts as played. Defaults to domain.FinishedThreshold.
	FinishThreshold float64
}

// Coordinator owns the PlaybackState. All operations serialize on mu; the
// position consumer for the active run is the only background reader of the
// engine and is replaced on every pause, switch and end.
type Coordinator struct {
	player   Player
	episodes EpisodeStore
	playlist PlaylistStore
	chapters ChapterStore
	sessions SessionRecorder
	events   store.EventEmitter
	remote   RemoteRegistrar
	rules    *chapters.RuleSet
	logger   *slog.Logger
	now      func() time.Time

	tickInterval    time.Duration
	persistEvery    int
	skipForward     float64
	skipBack        float64
	finishThreshold float64

	mu         sync.Mutex
	state      domain.PlaybackState
	episode    *domain.Episode
	chapterSet []domain.Chapter
	// chapterIdx is the current chapter index seen by the last tick, -1 for
	// none and unknownChapter before the first tick of a run.
	chapterIdx int
	ticks      int
	registered bool
	stopped    bool

	run       uint64
	runCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const unknownChapter = -2

// New creates a coordinator and registers it as the player's interruption handler.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Events == nil {
		cfg.Events = store.NoopEmitter{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.PersistEvery <= 0 {
		cfg.PersistEvery = 10
	}
	if cfg.SkipForward <= 0 {
		cfg.SkipForward = 30
	}
	if cfg.SkipBack <= 0 {
		cfg.SkipBack = 15
	}
	if cfg.FinishThreshold <= 0 {
		cfg.FinishThreshold = domain.FinishedThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		player:          cfg.Player,
		episodes:        cfg.Episodes,
		playlist:        cfg.Playlist,
		chapters:        cfg.Chapters,
		sessions:        cfg.Sessions,
		events:          cfg.Events,
		remote:          cfg.Remote,
		rules:           cfg.Rules,
		logger:          cfg.Logger,
		now:             cfg.Now,
		tickInterval:    cfg.TickInterval,
		persistEvery:    cfg.PersistEvery,
		skipForward:     cfg.SkipForward,
		skipBack:        cfg.SkipBack,
		finishThreshold: cfg.FinishThreshold,
		state:           domain.PlaybackState{Phase: domain.PhaseIdle, Rate: 1.0},
		chapterIdx:      unknownChapter,
		ctx:             ctx,
		cancel:          cancel,
	}
	c.player.OnInterruption(c.handleInterruption)
	return c
}

// Shutdown commits the position, ends the open session as terminated and
// stops background work.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.episode != nil {
		pos := c.refreshPosition(ctx)
		c.stopRun()
		_ = c.player.Pause(ctx)
		c.commitPosition(pos)
		c.sessions.End(pos, true)
		c.setPhase(domain.PhasePaused)
	}
	c.stopRun()
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("playback coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the playback state.
func (c *Coordinator) Snapshot() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Phase returns the lifecycle phase.
func (c *Coordinator) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// NowPlaying returns the media-center view of the playback state.
func (c *Coordinator) NowPlaying() nowplaying.Snapshot {
	st := c.Snapshot()
	if !st.Active() {
		return nowplaying.Snapshot{}
	}
	snap := nowplaying.Snapshot{
		EpisodeID: st.EpisodeID,
		Title:     st.Title,
		Artist:    st.PodcastTitle,
		Duration:  st.Duration,
		Elapsed:   st.Position,
		Rate:      st.Rate,
		Playing:   st.Phase == domain.PhasePlaying,
	}
	if st.Current != nil {
		snap.Chapter = st.Current.Title
	}
	return snap
}

func (c *Coordinator) snapshot() domain.PlaybackState {
	st := c.state
	st.Current = copyChapter(st.Current)
	st.Next = copyChapter(st.Next)
	st.Previous = copyChapter(st.Previous)
	return st
}

func copyChapter(ch *domain.Chapter) *domain.Chapter {
	if ch == nil {
		return nil
	}
	cp := *ch
	return &cp
}

func (c *Coordinator) setPhase(p domain.Phase) {
	if c.state.Phase == p {
		return
	}
	c.logger.Debug("phase changed",
		slog.String("from", string(c.state.Phase)),
		slog.String("to", string(p)),
		slog.String("episode_id", c.state.EpisodeID))
	c.state.Phase = p
	c.events.Emit(sse.NewStateEvent(c.state))
}

// startRun replaces the position consumer. Caller holds mu.
func (c *Coordinator) startRun() {
	c.stopRun()
	if c.stopped {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.runCancel = cancel
	run := c.run
	c.chapterIdx = unknownChapter
	c.ticks = 0

	samples := c.player.PositionStream(ctx, c.tickInterval)
	c.wg.Add(1)
	go c.consume(ctx, run, samples)
}

// stopRun cancels the position consumer. Samples already in flight are
// discarded by the run check in onSample. Caller holds mu.
func (c *Coordinator) stopRun() {
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.run++
}

func (c *Coordinator) consume(ctx context.Context, run uint64, samples <-chan engine.Sample) {
	defer c.wg.Done()
	for s := range samples {
		c.onSample(ctx, run, s)
	}
}

// refreshPosition reads the engine position into the state. Caller holds mu.
func (c *Coordinator) refreshPosition(ctx context.Context) float64 {
	st, err := c.player.Status(ctx)
	if err != nil {
		c.logger.Warn("failed to read engine status", slog.String("error", err.Error()))
		return c.state.Position
	}
	if st.Loaded {
		c.state.Position = st.Position
		c.state.Rate = st.Rate
	}
	return c.state.Position
}

// commitPosition persists the position. Failures are logged; in-memory state
// is never rolled back. Caller holds mu.
func (c *Coordinator) commitPosition(position float64) {
	if c.episode == nil {
		return
	}
	id := c.episode.ID
	if err := c.episodes.SetPlayPosition(context.WithoutCancel(c.ctx), id, position); err != nil {
		c.logger.Warn("failed to persist position",
			slog.String("episode_id", id),
			slog.Float64("position", position),
			slog.String("error", err.Error()))
	}
	c.episode.PlayPosition = position
	c.episode.MaxPosition = max(c.episode.MaxPosition, position)
	c.events.Emit(sse.NewPositionEvent(id, position, c.state.Duration))
}
