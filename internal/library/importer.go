// Package library imports local audio files as episodes, with their embedded
// chapters, into the episode store.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/simonhull/audiometa"

	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/id"
	"github.com/listenupapp/listenup-player/internal/store"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".aac":  true,
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Metadata is what the importer needs from an audio file.
type Metadata struct {
	Title    string
	Album    string
	Artist   string
	Duration float64
	Chapters []ChapterMark
}

// ChapterMark is an embedded chapter. End is 0 when the file does not say.
type ChapterMark struct {
	Title string
	Start float64
	End   float64
}

// Reader extracts metadata from an audio file.
type Reader interface {
	Read(ctx context.Context, path string) (*Metadata, error)
}

// AudiometaReader reads tags, duration and chapters with audiometa.
type AudiometaReader struct{}

// Read implements Reader.
func (AudiometaReader) Read(ctx context.Context, path string) (*Metadata, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only

	meta := &Metadata{
		Title:    file.Tags.Title,
		Album:    file.Tags.Album,
		Artist:   file.Tags.Artist,
		Duration: file.Audio.Duration.Seconds(),
	}
	for _, ch := range file.Chapters {
		meta.Chapters = append(meta.Chapters, ChapterMark{
			Title: ch.Title,
			Start: ch.StartTime.Seconds(),
			End:   ch.EndTime.Seconds(),
		})
	}
	return meta, nil
}

// Store is the subset of the library store the importer writes to.
type Store interface {
	FetchEpisodeBySource(ctx context.Context, source string) (*domain.Episode, error)
	UpsertEpisode(ctx context.Context, e *domain.Episode) error
	Chapters(ctx context.Context, episodeID string) ([]domain.Chapter, error)
	ReplaceChapters(ctx context.Context, episodeID string, chapters []domain.Chapter) error
}

// Importer turns audio files into episodes.
type Importer struct {
	store  Store
	reader Reader
	logger *slog.Logger
}

// NewImporter creates an importer. A nil reader uses AudiometaReader.
func NewImporter(st Store, reader Reader, logger *slog.Logger) *Importer {
	if reader == nil {
		reader = AudiometaReader{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{store: st, reader: reader, logger: logger}
}

// ImportFile reads path and upserts it as an episode. Re-importing a file keeps
// its episode ID and listening progress; chapters are only replaced when the
// embedded list changed, so per-chapter flags survive.
func (im *Importer) ImportFile(ctx context.Context, path string) (*domain.Episode, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if !IsAudioFile(abs) {
		return nil, domainerrors.Validationf("%s is not a supported audio file", filepath.Base(abs))
	}

	meta, err := im.reader.Read(ctx, abs)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "read %s", filepath.Base(abs))
	}

	ep, err := im.store.FetchEpisodeBySource(ctx, abs)
	switch {
	case errors.Is(err, store.ErrNotFound):
		ep = &domain.Episode{Source: abs}
		if ep.ID, err = id.Generate("ep"); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("lookup %s: %w", abs, err)
	}

	ep.Title = firstNonEmpty(meta.Title, strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)))
	ep.PodcastTitle = firstNonEmpty(meta.Album, meta.Artist)
	if meta.Duration > 0 {
		ep.Duration = meta.Duration
	}

	if err := im.store.UpsertEpisode(ctx, ep); err != nil {
		return nil, err
	}

	chapters := toChapters(meta.Chapters, ep.Duration)
	existing, err := im.store.Chapters(ctx, ep.ID)
	if err != nil {
		return nil, err
	}
	if !sameMarks(existing, chapters) {
		if err := im.store.ReplaceChapters(ctx, ep.ID, chapters); err != nil {
			return nil, err
		}
	}

	im.logger.Info("episode imported",
		"episode_id", ep.ID,
		"title", ep.Title,
		"duration", ep.Duration,
		"chapters", len(chapters),
	)
	return ep, nil
}

// ImportPath imports a file, or every audio file below a directory in lexical
// order. Files that fail to import are logged and skipped.
func (im *Importer) ImportPath(ctx context.Context, root string) ([]*domain.Episode, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		ep, err := im.ImportFile(ctx, root)
		if err != nil {
			return nil, err
		}
		return []*domain.Episode{ep}, nil
	}

	var episodes []*domain.Episode
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			im.logger.Warn("walk error", "path", path, "error", err)
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}

		ep, err := im.ImportFile(ctx, path)
		if err != nil {
			im.logger.Warn("import failed", "path", path, "error", err)
			return nil
		}
		episodes = append(episodes, ep)
		return nil
	})
	return episodes, err
}

// toChapters orders marks by start. Durations come from the reported end, or
// from the next chapter start; the last chapter runs to the episode end.
func toChapters(marks []ChapterMark, duration float64) []domain.Chapter {
	sorted := slices.Clone(marks)
	slices.SortStableFunc(sorted, func(a, b ChapterMark) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})

	chapters := make([]domain.Chapter, 0, len(sorted))
	for i, m := range sorted {
		end := m.End
		if end <= m.Start {
			end = 0
			if i+1 < len(sorted) {
				end = sorted[i+1].Start
			} else if duration > m.Start {
				end = duration
			}
		}

		ch := domain.Chapter{
			Index:      i,
			Start:      max(m.Start, 0),
			Title:      firstNonEmpty(strings.TrimSpace(m.Title), fmt.Sprintf("Chapter %d", i+1)),
			ShouldPlay: true,
		}
		if end > m.Start {
			d := end - m.Start
			ch.Duration = &d
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

func sameMarks(existing, incoming []domain.Chapter) bool {
	return slices.EqualFunc(existing, incoming, func(a, b domain.Chapter) bool {
		return a.Start == b.Start && a.Title == b.Title
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
