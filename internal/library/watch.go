package library

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
	"github.com/listenupapp/listenup-player/internal/watcher"
)

// Follow imports files as the watcher reports them settled, until ctx is
// done. onNew is called for episodes that were not in the library before;
// re-imports of known files only refresh metadata. Removed files are logged
// and left in the library so listening history keeps its episode.
func (im *Importer) Follow(ctx context.Context, events <-chan watcher.Event, onNew func(*domain.Episode)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			im.apply(ctx, ev, onNew)
		}
	}
}

func (im *Importer) apply(ctx context.Context, ev watcher.Event, onNew func(*domain.Episode)) {
	if !IsAudioFile(ev.Path) {
		return
	}

	if ev.Type == watcher.EventRemoved {
		im.logger.Info("audio file removed", "path", ev.Path)
		return
	}

	abs, err := filepath.Abs(ev.Path)
	if err != nil {
		im.logger.Warn("resolve watched file", "path", ev.Path, "error", err)
		return
	}
	_, err = im.store.FetchEpisodeBySource(ctx, abs)
	isNew := errors.Is(err, store.ErrNotFound)

	ep, err := im.ImportFile(ctx, abs)
	if err != nil {
		im.logger.Warn("import failed", "path", abs, "error", err)
		return
	}
	if isNew && onNew != nil {
		onNew(ep)
	}
}
