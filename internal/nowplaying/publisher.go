package nowplaying

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/listenupapp/listenup-player/internal/sse"
)

// Source returns the current snapshot. It is called from the publisher goroutine.
type Source func() Snapshot

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// Interval is the periodic refresh while playing. Defaults to 5s.
	Interval time.Duration
	// Burst bounds how many change-driven publishes may go out back to back.
	// Defaults to 4.
	Burst  int
	Logger *slog.Logger
}

// Publisher pushes snapshots to sinks when playback state changes and on a
// timer while playing. Change-driven publishes are token-bucket limited; a
// change that is throttled is flushed on the next timer tick.
type Publisher struct {
	source   Source
	sinks    []Sink
	limiter  *rate.Limiter
	interval time.Duration
	logger   *slog.Logger

	wake chan struct{}

	mu         sync.Mutex
	last       Snapshot
	cmds       RemoteCommands
	registered bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewPublisher creates a publisher. Call Start to begin publishing.
func NewPublisher(source Source, cfg PublisherConfig, sinks ...Sink) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		source:   source,
		sinks:    sinks,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval/time.Duration(cfg.Burst*4)), cfg.Burst),
		interval: cfg.Interval,
		logger:   cfg.Logger,
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the publishing goroutine.
func (p *Publisher) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run()
	})
}

// Stop halts publishing.
func (p *Publisher) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Emit implements store.EventEmitter. Events that change what a media center
// shows schedule a publish; everything else is ignored. Never blocks.
func (p *Publisher) Emit(event sse.Event) {
	switch event.Type {
	case sse.EventPlaybackState, sse.EventPlaybackEpisode, sse.EventPlaybackChapter, sse.EventChapterSkipped:
	default:
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// RegisterRemoteCommands hands cmds to every sink, including sinks added later.
func (p *Publisher) RegisterRemoteCommands(cmds RemoteCommands) {
	p.mu.Lock()
	p.cmds = cmds
	p.registered = true
	sinks := p.sinks
	p.mu.Unlock()

	for _, s := range sinks {
		s.RegisterRemoteCommands(cmds)
	}
}

// AddSink attaches a sink after construction. If remote commands were
// already registered the sink receives them immediately.
func (p *Publisher) AddSink(s Sink) {
	p.mu.Lock()
	p.sinks = append(p.sinks[:len(p.sinks):len(p.sinks)], s)
	cmds, registered := p.cmds, p.registered
	p.mu.Unlock()

	if registered {
		s.RegisterRemoteCommands(cmds)
	}
}

// Last returns the most recently published snapshot.
func (p *Publisher) Last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Publisher) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
			if p.limiter.Allow() {
				p.publish()
				pending = false
			} else {
				pending = true
			}
		case <-ticker.C:
			if pending || p.Last().Playing {
				p.publish()
				pending = false
			}
		}
	}
}

func (p *Publisher) publish() {
	snap := p.source()

	p.mu.Lock()
	p.last = snap
	sinks := p.sinks
	p.mu.Unlock()

	for _, s := range sinks {
		s.Publish(snap)
	}
}
