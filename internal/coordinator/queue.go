package coordinator

import (
	"context"
	"log/slog"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/errors"
	"github.com/listenupapp/listenup-player/internal/sse"
)

// Queue returns the pending episodes in play order.
func (c *Coordinator) Queue(ctx context.Context) ([]domain.QueueEntry, error) {
	return c.playlist.Playlist(ctx)
}

// Enqueue adds an episode to the front or end of the queue. The active
// episode is never queued.
func (c *Coordinator) Enqueue(ctx context.Context, episodeID string, at domain.QueuePosition) error {
	if !at.Valid() {
		return errors.Validationf("unknown queue position %q", at)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.episodes.FetchEpisode(ctx, episodeID); err != nil {
		if isNotFound(err) {
			return errors.NotFoundf("episode %s not found", episodeID)
		}
		return errors.Wrapf(err, errors.CodeInternal, "fetch episode %s", episodeID)
	}
	if c.episode != nil && c.episode.ID == episodeID {
		return errors.Conflict("episode is already playing")
	}
	if err := c.playlist.AddToPlaylist(ctx, episodeID, at); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "add to queue")
	}
	c.emitQueue(ctx)
	return nil
}

// Dequeue removes an episode from the queue. Removing an absent entry is a no-op.
func (c *Coordinator) Dequeue(ctx context.Context, episodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.playlist.RemoveFromPlaylist(ctx, episodeID); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "remove from queue")
	}
	c.emitQueue(ctx)
	return nil
}

// emitQueue publishes the current queue. Caller holds mu.
func (c *Coordinator) emitQueue(ctx context.Context) {
	entries, err := c.playlist.Playlist(ctx)
	if err != nil {
		c.logger.Warn("failed to read queue", slog.String("error", err.Error()))
		return
	}
	c.events.Emit(sse.NewQueueChangedEvent(entries))
}
