package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/instance"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/sse"
	"github.com/listenupapp/listenup-player/internal/store"
	"github.com/listenupapp/listenup-player/internal/store/sqlite"
)

// InstanceLockHandle holds the data directory lock for the process lifetime.
type InstanceLockHandle struct {
	*instance.Lock
}

// Shutdown implements do.Shutdownable.
func (h *InstanceLockHandle) Shutdown() error {
	return h.Release()
}

// ProvideInstanceLock takes the exclusive data directory lock. A second
// player pointed at the same directory fails here, before any store opens.
func ProvideInstanceLock(i do.Injector) (*InstanceLockHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	lock, err := instance.Acquire(cfg.Data.LockPath())
	if err != nil {
		return nil, err
	}

	log.Debug("Data directory locked", "path", lock.Path())

	return &InstanceLockHandle{Lock: lock}, nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// LibraryHandle wraps the SQLite library store with shutdown capability.
type LibraryHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *LibraryHandle) Shutdown() error {
	return h.Close()
}

// ProvideLibrary opens the episode library.
func ProvideLibrary(i do.Injector) (*LibraryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*InstanceLockHandle](i)

	path := cfg.Data.LibraryDBPath()
	db, err := sqlite.Open(path, log.Component("library"))
	if err != nil {
		return nil, err
	}

	log.Info("Library opened", "path", path)

	return &LibraryHandle{Store: db}, nil
}

// JournalHandle wraps the Badger session journal with shutdown capability.
type JournalHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *JournalHandle) Shutdown() error {
	return h.Close()
}

// ProvideJournal opens the session journal.
func ProvideJournal(i do.Injector) (*JournalHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*InstanceLockHandle](i)

	path := cfg.Data.JournalPath()
	db, err := store.New(path, log.Component("journal"))
	if err != nil {
		return nil, err
	}

	log.Info("Session journal opened", "path", path)

	return &JournalHandle{Store: db}, nil
}

// ProvideInstance loads or creates this player's identity.
func ProvideInstance(i do.Injector) (*domain.Instance, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	journal := do.MustInvoke[*JournalHandle](i)

	inst, err := journal.InitializeInstance(context.Background(), cfg.Remote.Name, Version)
	if err != nil {
		return nil, err
	}

	log.Info("Player instance ready",
		"instance_id", inst.ID,
		"name", inst.Name,
		"created_at", inst.CreatedAt,
	)

	return inst, nil
}
