package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/coordinator"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/engine"
	"github.com/listenupapp/listenup-player/internal/library"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/nowplaying"
	"github.com/listenupapp/listenup-player/internal/session"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/store"
	"github.com/listenupapp/listenup-player/internal/validation"
	"github.com/listenupapp/listenup-player/internal/watcher"
)

// EngineHandle wraps the playback engine with Shutdownable.
type EngineHandle struct {
	*engine.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideEngine provides the playback engine backed by the clock transport.
func ProvideEngine(i do.Injector) (*EngineHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	e := engine.New(engine.NewClockTransport(engine.FileProber{}, nil), log.Component("engine"))
	e.Start()

	return &EngineHandle{Engine: e}, nil
}

// TrackerHandle wraps the session tracker with Shutdownable.
type TrackerHandle struct {
	*session.Tracker
}

// Shutdown implements do.Shutdownable.
func (h *TrackerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideTracker starts the session tracker. Recovery of sessions left open
// by a previous run happens on the tracker worker before any command.
func ProvideTracker(i do.Injector) (*TrackerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	journal := do.MustInvoke[*JournalHandle](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	tracker := session.New(session.Config{
		Journal:   journal.Store,
		Episodes:  lib.Store,
		Validator: validator,
		Logger:    log.Component("tracker"),
		OnRecovered: func(s *domain.PlaySession) {
			sseHandle.Emit(sse.NewSessionRecoveredEvent(s))
		},
	})
	tracker.Start()

	return &TrackerHandle{Tracker: tracker}, nil
}

// ProvideRules loads the auto-skip rule file.
func ProvideRules(i do.Injector) (*chapters.RuleSet, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	rules, err := chapters.LoadRules(cfg.AutoSkip.RulesPath)
	if err != nil {
		return nil, err
	}

	log.Info("Auto-skip rules loaded", "path", cfg.AutoSkip.RulesPath, "rules", rules.Len())

	return rules, nil
}

// CoordinatorHandle wraps the coordinator and the now-playing publisher it
// feeds. The two are built together because the publisher reads its
// snapshots from the coordinator while the coordinator emits into it.
type CoordinatorHandle struct {
	*coordinator.Coordinator
	publisher *nowplaying.Publisher
}

// Publisher returns the now-playing publisher. Further sinks may be attached to it.
func (h *CoordinatorHandle) Publisher() *nowplaying.Publisher {
	return h.publisher
}

// Shutdown implements do.Shutdownable. The open session is ended as
// terminated before the publisher stops.
func (h *CoordinatorHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Coordinator.Shutdown(ctx)
	h.publisher.Stop()
	return err
}

// ProvideCoordinator wires the playback coordinator.
func ProvideCoordinator(i do.Injector) (*CoordinatorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	engineHandle := do.MustInvoke[*EngineHandle](i)
	lib := do.MustInvoke[*LibraryHandle](i)
	tracker := do.MustInvoke[*TrackerHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	rules := do.MustInvoke[*chapters.RuleSet](i)

	var coord *coordinator.Coordinator
	publisher := nowplaying.NewPublisher(
		func() nowplaying.Snapshot { return coord.NowPlaying() },
		nowplaying.PublisherConfig{
			Interval: cfg.Playback.NowPlayingInterval,
			Burst:    cfg.Playback.NowPlayingBurst,
			Logger:   log.Component("nowplaying"),
		},
		nowplaying.NewLogSink(log.Component("nowplaying")),
	)

	coord = coordinator.New(coordinator.Config{
		Player:          engineHandle.Engine,
		Episodes:        lib.Store,
		Playlist:        lib.Store,
		Chapters:        lib.Store,
		Sessions:        tracker.Tracker,
		Events:          store.Fanout(sseHandle.Manager, publisher),
		Remote:          publisher,
		Rules:           rules,
		Logger:          log.Component("coordinator"),
		TickInterval:    cfg.Playback.TickInterval,
		PersistEvery:    cfg.Playback.PersistEveryTicks,
		SkipForward:     cfg.Playback.SkipForward,
		SkipBack:        cfg.Playback.SkipBack,
		FinishThreshold: cfg.Playback.FinishThreshold,
	})
	publisher.Start()

	if err := coord.SetRate(context.Background(), cfg.Playback.DefaultRate); err != nil {
		log.Warn("Failed to apply default playback rate", "rate", cfg.Playback.DefaultRate, "error", err)
	}

	return &CoordinatorHandle{Coordinator: coord, publisher: publisher}, nil
}

// ProvideImporter provides the library importer.
func ProvideImporter(i do.Injector) (*library.Importer, error) {
	log := do.MustInvoke[*logger.Logger](i)
	lib := do.MustInvoke[*LibraryHandle](i)

	return library.NewImporter(lib.Store, library.AudiometaReader{}, log.Component("importer")), nil
}

// LibraryWatcherHandle follows the watch folder. Watcher is nil when no
// folder is configured.
type LibraryWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *LibraryWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	err := h.Stop()
	<-h.done
	return err
}

// ProvideLibraryWatcher imports the watch folder and keeps following it.
// Files that arrive while the player runs are queued when AutoQueue is set.
func ProvideLibraryWatcher(i do.Injector) (*LibraryWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	root := cfg.Library.WatchPath
	if root == "" {
		return &LibraryWatcherHandle{}, nil
	}

	importer := do.MustInvoke[*library.Importer](i)
	coord := do.MustInvoke[*CoordinatorHandle](i)

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create watch folder: %w", err)
	}

	w, err := watcher.New(log.Component("watcher"), watcher.Options{
		SettleDelay: cfg.Library.SettleDelay,
		Accept:      library.IsAudioFile,
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(root); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	onNew := func(ep *domain.Episode) {
		if !cfg.Library.AutoQueue {
			return
		}
		if err := coord.Enqueue(ctx, ep.ID, domain.QueueEnd); err != nil {
			log.Warn("Failed to queue new episode", "episode_id", ep.ID, "error", err)
		}
	}

	go func() {
		defer close(done)

		// Watching starts before the initial pass so nothing copied in
		// meanwhile is missed; a file seen by both is just re-imported.
		go func() { _ = w.Run(ctx) }()

		episodes, err := importer.ImportPath(ctx, root)
		if err != nil && ctx.Err() == nil {
			log.Warn("Initial library import failed", "path", root, "error", err)
		}
		log.Info("Library folder imported", "path", root, "episodes", len(episodes))

		importer.Follow(ctx, w.Events(), onNew)
	}()

	log.Info("Watching library folder", "path", root, "auto_queue", cfg.Library.AutoQueue)

	return &LibraryWatcherHandle{Watcher: w, cancel: cancel, done: done}, nil
}
