// Package main provides the entry point for the ListenUp podcast player.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/di"
	"github.com/listenupapp/listenup-player/internal/di/providers"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/library"
	"github.com/listenupapp/listenup-player/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer(os.Args[1:])

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start player: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	cfg := do.MustInvoke[*config.Config](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Args) > 0 {
		importer := do.MustInvoke[*library.Importer](injector)
		coord := do.MustInvoke[*providers.CoordinatorHandle](injector)
		if err := loadArguments(ctx, importer, coord, cfg.Args, log); err != nil {
			log.Error("Failed to load arguments", "error", err)
		}
	}

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("Shutting down player gracefully...")

	// The DI container shuts services down dependents first: the coordinator
	// ends the open session before the journal closes.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Goodbye")
}

// loadArguments imports every file or directory argument. The first episode
// starts playing when nothing is loaded yet; the rest join the end of the queue.
func loadArguments(ctx context.Context, importer *library.Importer, coord *providers.CoordinatorHandle, paths []string, log *logger.Logger) error {
	var episodes []*domain.Episode
	for _, path := range paths {
		imported, err := importer.ImportPath(ctx, path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		episodes = append(episodes, imported...)
	}

	if len(episodes) == 0 {
		log.Warn("No audio files found in arguments", "paths", paths)
		return nil
	}

	if coord.Snapshot().EpisodeID == "" {
		if err := coord.PlayEpisode(ctx, episodes[0].ID, true); err != nil {
			return fmt.Errorf("play %s: %w", episodes[0].Title, err)
		}
		episodes = episodes[1:]
	}

	for _, ep := range episodes {
		if err := coord.Enqueue(ctx, ep.ID, domain.QueueEnd); err != nil {
			return fmt.Errorf("enqueue %s: %w", ep.Title, err)
		}
	}

	log.Info("Arguments loaded", "paths", len(paths), "queued", len(episodes))
	return nil
}
