// Package session records listening sessions and their rate segments, and
// reconciles sessions left open by an unclean shutdown.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/id"
)

// Journal persists session records.
type Journal interface {
	SaveSession(ctx context.Context, s *domain.PlaySession) error
	ListOpenSessions(ctx context.Context) ([]*domain.PlaySession, error)
	ListSessionsForEpisode(ctx context.Context, episodeID string) ([]*domain.PlaySession, error)
}

// EpisodeReader supplies the furthest recorded position of an episode.
type EpisodeReader interface {
	FetchEpisode(ctx context.Context, id string) (*domain.Episode, error)
}

// Validator checks a record before it is written.
type Validator interface {
	Validate(v any) error
}

// Config configures a Tracker.
type Config struct {
	Journal   Journal
	Episodes  EpisodeReader
	Validator Validator
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// OnRecovered is called on the worker for every session closed by recovery.
	OnRecovered func(*domain.PlaySession)
	// QueueSize bounds pending requests. Defaults to 256.
	QueueSize int
}

type job func(ctx context.Context)

// Tracker is a single serialized worker. Commands are queued and applied in
// order; the recovery pass always runs before the first command.
type Tracker struct {
	journal     Journal
	episodes    EpisodeReader
	validator   Validator
	logger      *slog.Logger
	now         func() time.Time
	onRecovered func(*domain.PlaySession)

	jobs      chan job
	recovered chan struct{}
	report    RecoveryReport

	// worker-owned
	current      *domain.PlaySession
	lastPosition float64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a tracker. Call Start to run recovery and begin processing.
func New(cfg Config) *Tracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		journal:     cfg.Journal,
		episodes:    cfg.Episodes,
		validator:   cfg.Validator,
		logger:      cfg.Logger,
		now:         cfg.Now,
		onRecovered: cfg.OnRecovered,
		jobs:        make(chan job, cfg.QueueSize),
		recovered:   make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker. The recovery pass runs first, asynchronously to the caller.
func (t *Tracker) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.run()
	})
}

// Stop applies every queued command, then stops the worker.
func (t *Tracker) Stop(ctx context.Context) error {
	var err error
	t.stopOnce.Do(func() {
		err = t.Sync(ctx)
		t.cancel()
		t.wg.Wait()
		t.logger.Info("session tracker stopped")
	})
	return err
}

// Recovered is closed once the start-up recovery pass has finished.
func (t *Tracker) Recovered() <-chan struct{} {
	return t.recovered
}

// RecoveryReport returns the outcome of the recovery pass. Valid after Recovered is closed.
func (t *Tracker) RecoveryReport() RecoveryReport {
	<-t.recovered
	return t.report
}

func (t *Tracker) run() {
	defer t.wg.Done()

	t.report = t.recover(t.ctx)
	close(t.recovered)
	t.logger.Info("session recovery complete",
		slog.Group("stats",
			slog.Int("open", t.report.Open),
			slog.Int("closed", t.report.Closed),
			slog.Int("unresolved", t.report.Unresolved),
			slog.Int("failed", t.report.Failed)))

	for {
		select {
		case <-t.ctx.Done():
			return
		case j := <-t.jobs:
			j(t.ctx)
		}
	}
}

func (t *Tracker) enqueue(j job) {
	select {
	case t.jobs <- j:
	case <-t.ctx.Done():
		t.logger.Warn("session tracker stopped, dropping request")
	}
}

// call queues j and waits until it has run.
func (t *Tracker) call(ctx context.Context, j job) error {
	done := make(chan struct{})
	wrapped := func(wctx context.Context) {
		defer close(done)
		j(wctx)
	}

	select {
	case t.jobs <- wrapped:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeCanceled, "session tracker")
	case <-t.ctx.Done():
		return errors.Unavailable("session tracker stopped")
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CodeCanceled, "session tracker")
	case <-t.ctx.Done():
		return errors.Unavailable("session tracker stopped")
	}
}

// Sync waits until every previously queued command has been applied.
func (t *Tracker) Sync(ctx context.Context) error {
	return t.call(ctx, func(context.Context) {})
}

// StartOrUpdate records playback of episodeID at position and rate. An open
// session of the same episode only gains a segment when the rate changed; an
// open session of another episode is closed first. Times are taken when the
// command is issued, not when the worker applies it.
func (t *Tracker) StartOrUpdate(episodeID string, position, rate float64) {
	at := t.now()
	t.enqueue(func(ctx context.Context) {
		t.startOrUpdate(ctx, at, episodeID, position, rate)
	})
}

// Heartbeat records the latest position without touching the journal.
// It is used when a session has to be closed implicitly.
func (t *Tracker) Heartbeat(position float64) {
	t.enqueue(func(context.Context) {
		t.lastPosition = position
	})
}

// Pause closes the open session at position.
func (t *Tracker) Pause(position float64) {
	at := t.now()
	t.enqueue(func(ctx context.Context) {
		t.close(ctx, at, position, false)
	})
}

// End closes the open session at position. terminated marks a process
// shutdown rather than a user action.
func (t *Tracker) End(position float64, terminated bool) {
	at := t.now()
	t.enqueue(func(ctx context.Context) {
		t.close(ctx, at, position, terminated)
	})
}

// Current returns a copy of the open session, or nil.
func (t *Tracker) Current(ctx context.Context) (*domain.PlaySession, error) {
	var out *domain.PlaySession
	err := t.call(ctx, func(context.Context) {
		if t.current != nil {
			out = clone(t.current)
		}
	})
	return out, err
}

// Sessions returns the sessions recorded for an episode, oldest first.
func (t *Tracker) Sessions(ctx context.Context, episodeID string) ([]*domain.PlaySession, error) {
	var (
		out     []*domain.PlaySession
		listErr error
	)
	err := t.call(ctx, func(wctx context.Context) {
		out, listErr = t.journal.ListSessionsForEpisode(wctx, episodeID)
	})
	if err != nil {
		return nil, err
	}
	return out, listErr
}

// Stats aggregates the listening history of an episode.
func (t *Tracker) Stats(ctx context.Context, episodeID string) (domain.SessionStats, error) {
	sessions, err := t.Sessions(ctx, episodeID)
	if err != nil {
		return domain.SessionStats{}, err
	}

	stats := domain.SessionStats{EpisodeID: episodeID}
	for _, s := range sessions {
		stats.Add(s)
	}
	return stats, nil
}

func (t *Tracker) startOrUpdate(ctx context.Context, now time.Time, episodeID string, position, rate float64) {
	if t.current != nil && t.current.EpisodeID == episodeID {
		t.lastPosition = position
		if t.current.ChangeRate(rate, now, position) {
			t.logger.Debug("rate segment appended",
				slog.String("session_id", t.current.ID),
				slog.Float64("rate", rate),
				slog.Float64("position", position))
			_ = t.save(ctx, t.current)
		}
		return
	}

	if t.current != nil {
		// Another episode is open; close it where it was last heard.
		t.closeCurrent(ctx, now, t.currentPosition(), false)
	}
	t.lastPosition = position

	sessionID, err := id.NewSessionID()
	if err != nil {
		t.logger.Error("failed to generate session id", slog.String("error", err.Error()))
		return
	}

	s := domain.NewPlaySession(sessionID, episodeID, now, position, rate)
	t.current = s
	t.logger.Info("session opened",
		slog.String("session_id", s.ID),
		slog.String("episode_id", episodeID),
		slog.Float64("position", position),
		slog.Float64("rate", rate))
	_ = t.save(ctx, s)
}

func (t *Tracker) close(ctx context.Context, at time.Time, position float64, terminated bool) {
	t.lastPosition = position
	if t.current == nil {
		return
	}
	t.closeCurrent(ctx, at, position, terminated)
}

func (t *Tracker) closeCurrent(ctx context.Context, at time.Time, position float64, terminated bool) {
	s := t.current
	t.current = nil

	s.Close(at, position, !terminated)
	t.logger.Info("session closed",
		slog.String("session_id", s.ID),
		slog.String("episode_id", s.EpisodeID),
		slog.Float64("position", position),
		slog.Bool("terminated", terminated))
	_ = t.save(ctx, s)
}

// currentPosition is the best known position of the open session.
func (t *Tracker) currentPosition() float64 {
	if t.current == nil {
		return t.lastPosition
	}
	return max(t.lastPosition, t.current.StartPosition)
}

// save validates and persists a session. Failures are logged; in-memory state is kept.
func (t *Tracker) save(ctx context.Context, s *domain.PlaySession) error {
	if t.validator != nil {
		if err := t.validator.Validate(s); err != nil {
			t.logger.Error("refusing to persist invalid session",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()))
			return err
		}
	}
	if err := t.journal.SaveSession(ctx, s); err != nil {
		t.logger.Error("failed to persist session",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func clone(s *domain.PlaySession) *domain.PlaySession {
	c := *s
	c.Segments = append([]domain.RateSegment(nil), s.Segments...)
	return &c
}
