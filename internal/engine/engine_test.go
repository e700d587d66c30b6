package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func durations(m map[string]float64) Prober {
	return ProberFunc(func(_ context.Context, source string) (float64, error) {
		d, ok := m[source]
		if !ok {
			return 0, stderrors.New("no such source")
		}
		return d, nil
	})
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	transport := NewClockTransport(durations(map[string]float64{"a.mp3": 100, "b.mp3": 50}), clock.Now)
	e := New(transport, logger.Discard().Logger)
	e.Start()
	t.Cleanup(e.Stop)
	return e, clock
}

func TestEngine_PlayAdvancesAtRate(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := t.Context()

	item, err := e.ReplaceItem(ctx, "a.mp3")
	require.NoError(t, err)
	assert.Equal(t, 100.0, item.Duration)

	require.NoError(t, e.SetRate(ctx, 2.0))
	require.NoError(t, e.Play(ctx))
	clock.Advance(10 * time.Second)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.InDelta(t, 20.0, st.Position, 1e-9)
	assert.Equal(t, 2.0, st.Rate)
}

func TestEngine_PauseIsIdempotent(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := t.Context()

	require.NoError(t, e.Pause(ctx), "pause with nothing loaded")

	_, err := e.ReplaceItem(ctx, "a.mp3")
	require.NoError(t, err)
	require.NoError(t, e.Play(ctx))
	clock.Advance(5 * time.Second)

	require.NoError(t, e.Pause(ctx))
	require.NoError(t, e.Pause(ctx))
	clock.Advance(5 * time.Second)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Playing)
	assert.InDelta(t, 5.0, st.Position, 1e-9)
}

func TestEngine_ReplaceItemFailureKeepsPrevious(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := t.Context()

	_, err := e.ReplaceItem(ctx, "a.mp3")
	require.NoError(t, err)
	require.NoError(t, e.Seek(ctx, 42))

	_, err = e.ReplaceItem(ctx, "missing.mp3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", st.Item.Source)
	assert.InDelta(t, 42.0, st.Position, 1e-9)
}

func TestEngine_CommandsWithoutItem(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := t.Context()

	assert.True(t, errors.Is(e.Play(ctx), errors.ErrConflict))
	assert.True(t, errors.Is(e.Seek(ctx, 3), errors.ErrConflict))
	assert.True(t, errors.Is(e.SetRate(ctx, 0), errors.ErrValidation))
}

func TestEngine_StoppedEngineRejectsCommands(t *testing.T) {
	clock := newFakeClock()
	e := New(NewClockTransport(nil, clock.Now), logger.Discard().Logger)
	e.Start()
	e.Stop()

	err := e.Play(t.Context())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestEngine_PositionStreamEnds(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := t.Context()

	_, err := e.ReplaceItem(ctx, "b.mp3")
	require.NoError(t, err)
	require.NoError(t, e.Seek(ctx, 45))
	require.NoError(t, e.Play(ctx))

	stream := e.PositionStream(ctx, 5*time.Millisecond)

	var last Sample
	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case s, ok := <-stream:
			if !ok {
				done = true
				break
			}
			last = s
			clock.Advance(2 * time.Second)
		case <-deadline:
			t.Fatal("stream never ended")
		}
	}

	assert.True(t, last.Ended)
	assert.Equal(t, 50.0, last.Position)
}

func TestEngine_PositionStreamCancel(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.ReplaceItem(t.Context(), "a.mp3")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	stream := e.PositionStream(ctx, time.Millisecond)
	<-stream
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Cancelling the stream must not affect later commands.
	require.NoError(t, e.Seek(t.Context(), 10))
}

func TestEngine_Interruptions(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := t.Context()

	got := make(chan Interruption, 4)
	e.OnInterruption(func(i Interruption) {
		// Handlers may call back into the engine.
		_, _ = e.Status(context.Background())
		got <- i
	})

	_, err := e.ReplaceItem(ctx, "a.mp3")
	require.NoError(t, err)
	require.NoError(t, e.Play(ctx))

	require.NoError(t, e.HandleSignal(ctx, Signal{Kind: SignalRouteChanged, Reason: RouteDeviceDisconnected}))
	assert.Equal(t, InterruptionBegan, <-got)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Playing)
	assert.False(t, st.Active)

	require.NoError(t, e.HandleSignal(ctx, Signal{Kind: SignalFocusGained, ShouldResume: true}))
	assert.Equal(t, InterruptionResume, <-got)

	st, err = e.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.True(t, st.Active)

	require.NoError(t, e.HandleSignal(ctx, Signal{Kind: SignalRouteChanged, Reason: RouteDeviceConnected}))
	require.NoError(t, e.HandleSignal(ctx, Signal{Kind: SignalFocusRevoked}))
	assert.Equal(t, InterruptionFinished, <-got)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		signal Signal
		want   Interruption
		ok     bool
	}{
		{"focus lost", Signal{Kind: SignalFocusLost}, InterruptionBegan, true},
		{"focus gained resumable", Signal{Kind: SignalFocusGained, ShouldResume: true}, InterruptionResume, true},
		{"focus gained", Signal{Kind: SignalFocusGained}, InterruptionEnded, true},
		{"focus revoked", Signal{Kind: SignalFocusRevoked}, InterruptionFinished, true},
		{"headphones unplugged", Signal{Kind: SignalRouteChanged, Reason: RouteDeviceDisconnected}, InterruptionBegan, true},
		{"device connected", Signal{Kind: SignalRouteChanged, Reason: RouteDeviceConnected}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.signal)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
