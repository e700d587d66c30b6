package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

type fakeJournal struct {
	mu       sync.Mutex
	sessions map[string]*domain.PlaySession
	saves    int
}

func newFakeJournal(seed ...*domain.PlaySession) *fakeJournal {
	j := &fakeJournal{sessions: make(map[string]*domain.PlaySession)}
	for _, s := range seed {
		j.sessions[s.ID] = clone(s)
	}
	return j
}

func (j *fakeJournal) SaveSession(_ context.Context, s *domain.PlaySession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[s.ID] = clone(s)
	j.saves++
	return nil
}

func (j *fakeJournal) ListOpenSessions(context.Context) ([]*domain.PlaySession, error) {
	return j.filter(func(s *domain.PlaySession) bool { return s.IsOpen() }), nil
}

func (j *fakeJournal) ListSessionsForEpisode(_ context.Context, episodeID string) ([]*domain.PlaySession, error) {
	return j.filter(func(s *domain.PlaySession) bool { return s.EpisodeID == episodeID }), nil
}

func (j *fakeJournal) get(id string) *domain.PlaySession {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.sessions[id]; ok {
		return clone(s)
	}
	return nil
}

func (j *fakeJournal) all() []*domain.PlaySession {
	return j.filter(func(*domain.PlaySession) bool { return true })
}

func (j *fakeJournal) filter(keep func(*domain.PlaySession) bool) []*domain.PlaySession {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*domain.PlaySession
	for _, s := range j.sessions {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	slices.SortFunc(out, func(a, b *domain.PlaySession) int { return a.StartTime.Compare(b.StartTime) })
	return out
}

type fakeEpisodes map[string]*domain.Episode

func (f fakeEpisodes) FetchEpisode(_ context.Context, id string) (*domain.Episode, error) {
	ep, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ep, nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// gatedJournal holds the recovery scan until release is closed.
type gatedJournal struct {
	*fakeJournal
	release chan struct{}
}

func (j *gatedJournal) ListOpenSessions(ctx context.Context) ([]*domain.PlaySession, error) {
	<-j.release
	return j.fakeJournal.ListOpenSessions(ctx)
}
