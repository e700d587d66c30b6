package coordinator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/engine"
	"github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/store"
)

type fakeStream struct {
	ch     chan engine.Sample
	closed bool
}

type fakePlayer struct {
	mu       sync.Mutex
	sources  map[string]float64
	item     engine.Item
	loaded   bool
	playing  bool
	position float64
	rate     float64
	seeks    []float64
	streams  []*fakeStream
	handler  engine.Handler
}

func newFakePlayer(sources map[string]float64) *fakePlayer {
	return &fakePlayer{sources: sources, rate: 1.0}
}

func (p *fakePlayer) ReplaceItem(_ context.Context, source string) (engine.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.sources[source]
	if !ok {
		return engine.Item{}, errors.Unavailable("cannot open " + source)
	}
	p.item = engine.Item{Source: source, Duration: d}
	p.loaded = true
	p.playing = false
	p.position = 0
	return p.item, nil
}

func (p *fakePlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return errors.Conflict("no item loaded")
	}
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause(context.Context) error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Seek(_ context.Context, position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	p.seeks = append(p.seeks, position)
	return nil
}

func (p *fakePlayer) SetRate(_ context.Context, rate float64) error {
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) Status(context.Context) (engine.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return engine.Status{
		Item:     p.item,
		Loaded:   p.loaded,
		Playing:  p.playing,
		Active:   true,
		Rate:     p.rate,
		Position: p.position,
	}, nil
}

func (p *fakePlayer) PositionStream(ctx context.Context, _ time.Duration) <-chan engine.Sample {
	s := &fakeStream{ch: make(chan engine.Sample, 16)}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	context.AfterFunc(ctx, func() {
		p.mu.Lock()
		s.closed = true
		close(s.ch)
		p.mu.Unlock()
	})
	return s.ch
}

func (p *fakePlayer) OnInterruption(h engine.Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// emit delivers a sample to the newest open stream.
func (p *fakePlayer) emit(s engine.Sample) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streams) == 0 {
		return false
	}
	st := p.streams[len(p.streams)-1]
	if st.closed {
		return false
	}
	st.ch <- s
	return true
}

func (p *fakePlayer) setPosition(pos float64) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

func (p *fakePlayer) seekLog() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.seeks)
}

func (p *fakePlayer) openStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.streams {
		if !s.closed {
			n++
		}
	}
	return n
}

type fakeEpisodes struct {
	mu         sync.Mutex
	episodes   map[string]*domain.Episode
	positions  []string
	played     map[string]time.Time
	lastPlayed map[string]time.Time
}

func newFakeEpisodes(eps ...*domain.Episode) *fakeEpisodes {
	f := &fakeEpisodes{
		episodes:   make(map[string]*domain.Episode),
		played:     make(map[string]time.Time),
		lastPlayed: make(map[string]time.Time),
	}
	for _, e := range eps {
		f.episodes[e.ID] = e
	}
	return f
}

func (f *fakeEpisodes) FetchEpisode(_ context.Context, id string) (*domain.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEpisodes) SetPlayPosition(_ context.Context, id string, position float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	e.PlayPosition = position
	e.MaxPosition = max(e.MaxPosition, position)
	f.positions = append(f.positions, fmt.Sprintf("%s@%g", id, position))
	return nil
}

func (f *fakeEpisodes) SetLastPlayed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPlayed[id] = at
	return nil
}

func (f *fakeEpisodes) MarkAsPlayed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played[id] = at
	if e, ok := f.episodes[id]; ok {
		e.Played = true
	}
	return nil
}

func (f *fakeEpisodes) positionWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.positions)
}

func (f *fakeEpisodes) isPlayed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.played[id]
	return ok
}

type fakePlaylist struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakePlaylist) NextEpisode(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return "", nil
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

func (f *fakePlaylist) AddToPlaylist(_ context.Context, id string, at domain.QueuePosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = slices.DeleteFunc(f.ids, func(s string) bool { return s == id })
	if at == domain.QueueFront {
		f.ids = append([]string{id}, f.ids...)
	} else {
		f.ids = append(f.ids, id)
	}
	return nil
}

func (f *fakePlaylist) RemoveFromPlaylist(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = slices.DeleteFunc(f.ids, func(s string) bool { return s == id })
	return nil
}

func (f *fakePlaylist) Playlist(context.Context) ([]domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.QueueEntry, len(f.ids))
	for i, id := range f.ids {
		out[i] = domain.QueueEntry{EpisodeID: id, Position: i}
	}
	return out, nil
}

func (f *fakePlaylist) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ids)
}

type fakeChapters struct {
	mu        sync.Mutex
	byEpisode map[string][]domain.Chapter
	skipped   []string
	disabled  []string
}

func (f *fakeChapters) Chapters(_ context.Context, episodeID string) ([]domain.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.byEpisode[episodeID]), nil
}

func (f *fakeChapters) MarkChapterSkipped(_ context.Context, chapterID string, _ time.Time) error {
	f.mu.Lock()
	f.skipped = append(f.skipped, chapterID)
	f.mu.Unlock()
	return nil
}

func (f *fakeChapters) SetChapterShouldPlay(_ context.Context, chapterID string, shouldPlay bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !shouldPlay {
		f.disabled = append(f.disabled, chapterID)
	}
	return nil
}

func (f *fakeChapters) skippedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.skipped)
}

type fakeSessions struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSessions) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeSessions) StartOrUpdate(episodeID string, position, rate float64) {
	f.record("start %s %g %g", episodeID, position, rate)
}

func (f *fakeSessions) Heartbeat(float64) {}

func (f *fakeSessions) Pause(position float64) {
	f.record("pause %g", position)
}

func (f *fakeSessions) End(position float64, terminated bool) {
	f.record("end %g %t", position, terminated)
}

func (f *fakeSessions) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) count(t sse.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fakeRemote struct {
	mu    sync.Mutex
	count int
	cmds  nowplaying.RemoteCommands
}

func (f *fakeRemote) RegisterRemoteCommands(cmds nowplaying.RemoteCommands) {
	f.mu.Lock()
	f.count++
	f.cmds = cmds
	f.mu.Unlock()
}
