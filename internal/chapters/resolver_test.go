package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/domain"
)

func fixture() []domain.Chapter {
	return []domain.Chapter{
		{ID: "c0", Index: 0, Start: 0, Title: "Intro", ShouldPlay: true},
		{ID: "c1", Index: 1, Start: 30, Title: "Sponsor", ShouldPlay: false},
		{ID: "c2", Index: 2, Start: 60, Title: "Interview", ShouldPlay: true},
	}
}

func TestCurrentIndex(t *testing.T) {
	chs := fixture()

	tests := []struct {
		name     string
		position float64
		want     int
	}{
		{"before first chapter", -1, -1},
		{"exactly at start", 0, 0},
		{"inside first", 29.9, 0},
		{"boundary belongs to next", 30, 1},
		{"inside last", 120, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentIndex(tt.position, chs))
		})
	}
}

func TestCurrentIndex_NoChapters(t *testing.T) {
	assert.Equal(t, -1, CurrentIndex(10, nil))
	assert.Nil(t, Current(10, nil))
	assert.Nil(t, Next(10, nil))
	assert.Nil(t, Previous(10, nil))
}

func TestCurrentIndex_LateStartHasNoCurrent(t *testing.T) {
	chs := []domain.Chapter{{ID: "a", Start: 10, ShouldPlay: true}}

	assert.Nil(t, Current(5, chs))
	require.NotNil(t, Next(5, chs))
	assert.Equal(t, "a", Next(5, chs).ID)
}

func TestNext_SkipsUnplayable(t *testing.T) {
	chs := fixture()

	next := Next(10, chs)
	require.NotNil(t, next)
	assert.Equal(t, "c2", next.ID)

	assert.Nil(t, Next(60, chs))
}

func TestPrevious(t *testing.T) {
	chs := fixture()

	assert.Nil(t, Previous(10, chs))
	prev := Previous(75, chs)
	require.NotNil(t, prev)
	assert.Equal(t, "c1", prev.ID)
}

func TestEnd(t *testing.T) {
	chs := fixture()

	end, ok := End(0, chs, 0)
	assert.True(t, ok)
	assert.Equal(t, 30.0, end)

	end, ok = End(2, chs, 180)
	assert.True(t, ok)
	assert.Equal(t, 180.0, end)

	_, ok = End(2, chs, 0)
	assert.False(t, ok, "last chapter without duration has no end")

	_, ok = End(5, chs, 180)
	assert.False(t, ok)
}

func TestProgress(t *testing.T) {
	chs := fixture()

	assert.InDelta(t, 0.5, Progress(15, &chs[0], chs, 180), 1e-9)
	assert.InDelta(t, 0.25, Progress(90, &chs[2], chs, 180), 1e-9)
	assert.Equal(t, 0.0, Progress(90, &chs[2], chs, 0), "degenerate end yields zero")
	assert.Equal(t, 0.0, Progress(90, nil, chs, 180))
}

func TestProgress_CanExceedOne(t *testing.T) {
	chs := fixture()

	assert.Greater(t, Progress(45, &chs[0], chs, 180), 1.0)
}

func TestResolve(t *testing.T) {
	chs := fixture()

	res := Resolve(45, chs, 180)
	require.NotNil(t, res.Current)
	require.NotNil(t, res.Previous)
	require.NotNil(t, res.Next)
	assert.Equal(t, "c1", res.Current.ID)
	assert.Equal(t, "c0", res.Previous.ID)
	assert.Equal(t, "c2", res.Next.ID)
	assert.InDelta(t, 0.5, res.Progress, 1e-9)

	res.Current.Skipped = true
	assert.True(t, chs[1].Skipped, "resolution points into the slice")
}

func TestEndOf_UsesIdentity(t *testing.T) {
	chs := fixture()
	copyOf := chs[0]

	end, ok := EndOf(&copyOf, chs, 180)
	assert.True(t, ok)
	assert.Equal(t, 30.0, end)
}
