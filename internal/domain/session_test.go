package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestNewPlaySession_OpensFirstSegment(t *testing.T) {
	s := NewPlaySession("s-1", "ep-1", t0, 42, 1.5)

	assert.True(t, s.IsOpen())
	require.Len(t, s.Segments, 1)
	assert.Equal(t, 1.5, s.Segments[0].Rate)
	assert.Equal(t, 42.0, s.Segments[0].StartPosition)
	assert.True(t, s.Segments[0].IsOpen())
}

func TestPlaySession_ChangeRate(t *testing.T) {
	s := NewPlaySession("s-1", "ep-1", t0, 0, 1.0)

	t.Run("same rate is a no-op", func(t *testing.T) {
		assert.False(t, s.ChangeRate(1.0, t0.Add(10*time.Second), 10))
		assert.Len(t, s.Segments, 1)
	})

	t.Run("new rate closes previous segment first", func(t *testing.T) {
		assert.True(t, s.ChangeRate(2.0, t0.Add(30*time.Second), 30))
		require.Len(t, s.Segments, 2)

		first := s.Segments[0]
		require.NotNil(t, first.EndTime)
		require.NotNil(t, first.EndPosition)
		assert.Equal(t, t0.Add(30*time.Second), *first.EndTime)
		assert.Equal(t, 30.0, *first.EndPosition)

		second := s.Segments[1]
		assert.Equal(t, 2.0, second.Rate)
		assert.Equal(t, 30.0, second.StartPosition)
		assert.True(t, second.IsOpen())
	})
}

func TestPlaySession_Close(t *testing.T) {
	t.Run("records end position past start", func(t *testing.T) {
		s := NewPlaySession("s-1", "ep-1", t0, 10, 1.0)
		s.Close(t0.Add(time.Minute), 70, true)

		assert.False(t, s.IsOpen())
		require.NotNil(t, s.EndPosition)
		assert.Equal(t, 70.0, *s.EndPosition)
		require.NotNil(t, s.EndedCleanly)
		assert.True(t, *s.EndedCleanly)
		assert.False(t, s.LastSegment().IsOpen())
	})

	t.Run("leaves end position unset when nothing was played", func(t *testing.T) {
		s := NewPlaySession("s-1", "ep-1", t0, 10, 1.0)
		s.Close(t0.Add(time.Second), 10, false)

		assert.False(t, s.IsOpen())
		assert.Nil(t, s.EndPosition)
		assert.False(t, *s.EndedCleanly)
	})

	t.Run("end time never precedes start time", func(t *testing.T) {
		s := NewPlaySession("s-1", "ep-1", t0, 0, 1.0)
		s.Close(t0.Add(-time.Hour), 5, true)

		assert.Equal(t, t0, *s.EndTime)
	})
}

func TestPlaySession_ContentAndWallSeconds(t *testing.T) {
	s := NewPlaySession("s-1", "ep-1", t0, 0, 1.0)
	s.ChangeRate(2.0, t0.Add(60*time.Second), 60)
	s.Close(t0.Add(90*time.Second), 120, true)

	assert.InDelta(t, 120.0, s.ContentSeconds(), 1e-9)
	assert.InDelta(t, 90.0, s.WallSeconds(), 1e-9)
}

func TestRateSegment_EffectiveRate(t *testing.T) {
	tests := []struct {
		rate float64
		want float64
	}{
		{0, 1.0},
		{-1, 1.0},
		{0.01, MinRecoveryRate},
		{1.5, 1.5},
	}
	for _, tt := range tests {
		seg := RateSegment{Rate: tt.rate}
		assert.Equal(t, tt.want, seg.EffectiveRate(), "rate %v", tt.rate)
	}
}

func TestSessionStats_Add(t *testing.T) {
	closed := NewPlaySession("s-1", "ep-1", t0, 0, 1.0)
	closed.Close(t0.Add(30*time.Second), 30, true)

	unclean := NewPlaySession("s-2", "ep-1", t0.Add(time.Hour), 30, 1.0)
	unclean.Close(t0.Add(time.Hour+10*time.Second), 40, false)

	open := NewPlaySession("s-3", "ep-1", t0.Add(2*time.Hour), 40, 1.0)

	var st SessionStats
	st.Add(closed)
	st.Add(unclean)
	st.Add(open)

	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, 1, st.Open)
	assert.Equal(t, 1, st.Unclean)
	assert.InDelta(t, 40.0, st.ContentSeconds, 1e-9)
	assert.InDelta(t, 40.0, st.WallSeconds, 1e-9)
}

func TestChapter_SameAs(t *testing.T) {
	a := &Chapter{ID: "c-1", Start: 0}
	b := &Chapter{ID: "c-1", Start: 0}
	c := &Chapter{ID: "c-2", Start: 60}

	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(c))
	assert.False(t, a.SameAs(nil))
	assert.True(t, (*Chapter)(nil).SameAs(nil))
}

func TestEpisode_Progress(t *testing.T) {
	ep := &Episode{Duration: 200, PlayPosition: 190}
	assert.InDelta(t, 0.95, ep.Progress(), 1e-9)

	unknown := &Episode{PlayPosition: 50}
	assert.Equal(t, 0.0, unknown.Progress())
	assert.False(t, unknown.HasDuration())
}

func TestPlaySession_CloseInferred(t *testing.T) {
	s := NewPlaySession("s-1", "ep-1", t0, 100, 1.0)
	s.ChangeRate(2.0, t0.Add(50*time.Second), 150)

	s.CloseInferred(250)

	require.NotNil(t, s.EndTime)
	require.NotNil(t, s.EndPosition)
	require.NotNil(t, s.EndedCleanly)
	assert.False(t, *s.EndedCleanly)
	assert.Equal(t, 250.0, *s.EndPosition)

	last := s.Segments[1]
	require.NotNil(t, last.EndTime)
	assert.Equal(t, 250.0, *last.EndPosition)
	// 100 seconds of content at 2x takes 50 seconds.
	assert.Equal(t, t0.Add(100*time.Second), *last.EndTime)
	assert.Equal(t, *last.EndTime, *s.EndTime)
}

func TestPlaySession_CloseInferredZeroRate(t *testing.T) {
	s := NewPlaySession("s-1", "ep-1", t0, 0, 0)

	s.CloseInferred(30)

	assert.Equal(t, t0.Add(30*time.Second), *s.EndTime, "absent rate counts as 1.0")
}
