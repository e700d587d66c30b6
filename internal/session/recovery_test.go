package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/logger"
)

var t0 = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

func closed(s *domain.PlaySession, at time.Time, pos float64) *domain.PlaySession {
	s.Close(at, pos, true)
	return s
}

func runRecovery(t *testing.T, journal *fakeJournal, episodes fakeEpisodes) (*Tracker, []*domain.PlaySession) {
	t.Helper()

	var recovered []*domain.PlaySession
	tr := New(Config{
		Journal:     journal,
		Episodes:    episodes,
		Logger:      logger.Discard().Logger,
		OnRecovered: func(s *domain.PlaySession) { recovered = append(recovered, s) },
	})
	tr.Start()
	t.Cleanup(func() { _ = tr.Stop(context.Background()) })

	select {
	case <-tr.Recovered():
	case <-time.After(2 * time.Second):
		t.Fatal("recovery did not finish")
	}
	return tr, recovered
}

func TestRecovery_UsesLaterSessionStart(t *testing.T) {
	a := domain.NewPlaySession("a", "E", t0, 0, 1.0)
	b := closed(domain.NewPlaySession("b", "E", t0.Add(120*time.Second), 500, 1.0), t0.Add(200*time.Second), 580)
	journal := newFakeJournal(a, b)

	tr, recovered := runRecovery(t, journal, fakeEpisodes{"E": {ID: "E", MaxPosition: 900}})

	got := journal.get("a")
	require.NotNil(t, got.EndTime)
	require.NotNil(t, got.EndPosition)
	assert.Equal(t, 500.0, *got.EndPosition)
	require.NotNil(t, got.EndedCleanly)
	assert.False(t, *got.EndedCleanly)
	assert.Equal(t, t0.Add(500*time.Second), *got.EndTime)

	require.Len(t, recovered, 1)
	assert.Equal(t, RecoveryReport{Open: 1, Closed: 1}, tr.RecoveryReport())
}

func TestRecovery_PicksEarliestLaterSession(t *testing.T) {
	a := domain.NewPlaySession("a", "E", t0, 10, 1.0)
	c := closed(domain.NewPlaySession("c", "E", t0.Add(time.Hour), 700, 1.0), t0.Add(2*time.Hour), 800)
	b := closed(domain.NewPlaySession("b", "E", t0.Add(time.Minute), 300, 1.0), t0.Add(2*time.Minute), 360)
	other := closed(domain.NewPlaySession("x", "F", t0.Add(time.Second), 20, 1.0), t0.Add(time.Minute), 80)
	journal := newFakeJournal(a, b, c, other)

	runRecovery(t, journal, nil)

	got := journal.get("a")
	require.NotNil(t, got.EndPosition)
	assert.Equal(t, 300.0, *got.EndPosition)
}

func TestRecovery_FallsBackToMaxPosition(t *testing.T) {
	a := domain.NewPlaySession("a", "E", t0, 10, 1.0)
	journal := newFakeJournal(a)

	runRecovery(t, journal, fakeEpisodes{"E": {ID: "E", MaxPosition: 800}})

	got := journal.get("a")
	require.NotNil(t, got.EndPosition)
	assert.Equal(t, 800.0, *got.EndPosition)
	assert.False(t, *got.EndedCleanly)
	assert.Equal(t, 800.0, *got.Segments[0].EndPosition)
}

func TestRecovery_RefusesInferenceAtOrBeforeStart(t *testing.T) {
	a := domain.NewPlaySession("a", "E", t0, 900, 1.0)
	journal := newFakeJournal(a)

	tr, recovered := runRecovery(t, journal, fakeEpisodes{"E": {ID: "E", MaxPosition: 800}})

	got := journal.get("a")
	assert.True(t, got.IsOpen())
	assert.Nil(t, got.EndPosition)
	assert.Nil(t, got.EndedCleanly)
	assert.Empty(t, recovered)
	assert.Equal(t, 1, tr.RecoveryReport().Unresolved)
}

func TestRecovery_UnknownEpisodeStaysOpen(t *testing.T) {
	a := domain.NewPlaySession("a", "gone", t0, 0, 1.0)
	journal := newFakeJournal(a)

	runRecovery(t, journal, fakeEpisodes{})

	assert.True(t, journal.get("a").IsOpen())
}

func TestRecovery_BackfillsWithSegmentRate(t *testing.T) {
	a := domain.NewPlaySession("a", "E", t0, 0, 1.0)
	a.ChangeRate(2.0, t0.Add(100*time.Second), 100)
	journal := newFakeJournal(a)

	runRecovery(t, journal, fakeEpisodes{"E": {ID: "E", MaxPosition: 300}})

	got := journal.get("a")
	require.Len(t, got.Segments, 2)
	last := got.Segments[1]
	require.NotNil(t, last.EndTime)
	// 200 seconds of content at 2x from t0+100s.
	assert.Equal(t, t0.Add(200*time.Second), *last.EndTime)
	assert.Equal(t, *last.EndTime, *got.EndTime)
}

func TestInferEnd(t *testing.T) {
	open := domain.NewPlaySession("a", "E", t0, 50, 1.0)
	sameStart := domain.NewPlaySession("b", "E", t0, 400, 1.0)

	end, ok := InferEnd(open, []*domain.PlaySession{open, sameStart}, 120)
	assert.True(t, ok)
	assert.Equal(t, 120.0, end, "sessions starting at the same instant are not later")

	_, ok = InferEnd(open, nil, 50)
	assert.False(t, ok, "equal to start is rejected")

	later := domain.NewPlaySession("c", "E", t0.Add(time.Second), 40, 1.0)
	_, ok = InferEnd(open, []*domain.PlaySession{later}, 1000)
	assert.False(t, ok, "a later session bounds the inference even when max position is larger")
}
