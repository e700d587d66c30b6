package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/store/sqlite"
)

type fakeReader struct {
	byName map[string]*Metadata
	err    error
}

func (f *fakeReader) Read(_ context.Context, path string) (*Metadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.byName[filepath.Base(path)]; ok {
		copied := *m
		return &copied, nil
	}
	return &Metadata{}, nil
}

func setupImporter(t *testing.T, reader *fakeReader) (*Importer, *sqlite.Store, string) {
	t.Helper()

	dir := t.TempDir()
	st, err := sqlite.Open(filepath.Join(dir, "library.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	media := filepath.Join(dir, "media")
	require.NoError(t, os.MkdirAll(media, 0o755))
	return NewImporter(st, reader, nil), st, media
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestImportFile_CreatesEpisodeAndChapters(t *testing.T) {
	reader := &fakeReader{byName: map[string]*Metadata{
		"ep1.mp3": {
			Title:    "Pilot",
			Album:    "The Show",
			Duration: 1800,
			Chapters: []ChapterMark{
				{Title: "Sponsor", Start: 60, End: 120},
				{Title: "Intro", Start: 0},
				{Title: "", Start: 120},
			},
		},
	}}
	im, st, media := setupImporter(t, reader)
	ctx := context.Background()

	ep, err := im.ImportFile(ctx, touch(t, filepath.Join(media, "ep1.mp3")))
	require.NoError(t, err)
	assert.Equal(t, "Pilot", ep.Title)
	assert.Equal(t, "The Show", ep.PodcastTitle)
	assert.InDelta(t, 1800.0, ep.Duration, 1e-9)

	chapters, err := st.Chapters(ctx, ep.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	assert.Equal(t, "Intro", chapters[0].Title)
	require.NotNil(t, chapters[0].Duration)
	assert.InDelta(t, 60.0, *chapters[0].Duration, 1e-9, "open end runs to next start")

	assert.Equal(t, "Sponsor", chapters[1].Title)
	assert.InDelta(t, 60.0, *chapters[1].Duration, 1e-9)

	assert.Equal(t, "Chapter 3", chapters[2].Title)
	assert.InDelta(t, 1680.0, *chapters[2].Duration, 1e-9, "last chapter runs to episode end")
	for _, ch := range chapters {
		assert.True(t, ch.ShouldPlay)
	}
}

func TestImportFile_ReimportKeepsIDProgressAndFlags(t *testing.T) {
	reader := &fakeReader{byName: map[string]*Metadata{
		"ep1.m4a": {Title: "Pilot", Duration: 600, Chapters: []ChapterMark{{Title: "A", Start: 0}, {Title: "Ad", Start: 100}}},
	}}
	im, st, media := setupImporter(t, reader)
	ctx := context.Background()
	path := touch(t, filepath.Join(media, "ep1.m4a"))

	first, err := im.ImportFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st.SetPlayPosition(ctx, first.ID, 250))

	chapters, err := st.Chapters(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, st.SetChapterShouldPlay(ctx, chapters[1].ID, false))

	reader.byName["ep1.m4a"].Title = "Pilot (remastered)"
	second, err := im.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := st.FetchEpisode(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pilot (remastered)", stored.Title)
	assert.InDelta(t, 250.0, stored.PlayPosition, 1e-9)

	chapters, err = st.Chapters(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, chapters[1].ShouldPlay, "unchanged chapter list keeps flags")
}

func TestImportFile_FallbackTitleAndErrors(t *testing.T) {
	reader := &fakeReader{byName: map[string]*Metadata{}}
	im, _, media := setupImporter(t, reader)
	ctx := context.Background()

	ep, err := im.ImportFile(ctx, touch(t, filepath.Join(media, "Episode 12.opus")))
	require.NoError(t, err)
	assert.Equal(t, "Episode 12", ep.Title)

	_, err = im.ImportFile(ctx, touch(t, filepath.Join(media, "notes.txt")))
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	reader.err = errors.New("truncated atom")
	_, err = im.ImportFile(ctx, touch(t, filepath.Join(media, "broken.mp3")))
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnavailable))
}

func TestImportPath_WalksDirectory(t *testing.T) {
	reader := &fakeReader{byName: map[string]*Metadata{}}
	im, st, media := setupImporter(t, reader)
	ctx := context.Background()

	touch(t, filepath.Join(media, "b.mp3"))
	touch(t, filepath.Join(media, "a", "c.m4b"))
	touch(t, filepath.Join(media, "cover.jpg"))
	touch(t, filepath.Join(media, ".cache", "hidden.mp3"))

	episodes, err := im.ImportPath(ctx, media)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "c", episodes[0].Title)
	assert.Equal(t, "b", episodes[1].Title)

	all, err := st.ListEpisodes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestToChapters_NoDurationLeavesLastOpen(t *testing.T) {
	chapters := toChapters([]ChapterMark{{Title: "Only", Start: 0}}, 0)

	require.Len(t, chapters, 1)
	assert.Nil(t, chapters[0].Duration)
}
