// Package di provides dependency injection configuration for the ListenUp player.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/config"
	"github.com/listenupapp/listenup-player/internal/di/providers"
	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/library"
	"github.com/listenupapp/listenup-player/internal/logger"
	"github.com/listenupapp/listenup-player/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments after the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Args(args))
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideInstanceLock)
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideJournal)
	do.Provide(injector, providers.ProvideInstance)

	// Playback
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideTracker)
	do.Provide(injector, providers.ProvideRules)
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideImporter)
	do.Provide(injector, providers.ProvideLibraryWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services in dependency order. The first
// provider failure aborts startup; the caller still owns the container and
// should shut it down to release whatever was already opened.
func Bootstrap(injector *do.RootScope) error {
	steps := []func(do.Injector) error{
		warm[*config.Config],
		warm[*logger.Logger],
		warm[*providers.InstanceLockHandle],
		warm[*validation.Validator],
		warm[*providers.SSEManagerHandle],
		warm[*providers.LibraryHandle],
		warm[*providers.JournalHandle],
		warm[*domain.Instance],

		// Playback
		warm[*providers.EngineHandle],
		warm[*providers.TrackerHandle],
		warm[*chapters.RuleSet],
		warm[*providers.CoordinatorHandle],
		warm[*library.Importer],
		warm[*providers.LibraryWatcherHandle],

		// Server
		warm[*providers.HTTPServerHandle],
		warm[*providers.MDNSServiceHandle],
	}

	for _, step := range steps {
		if err := step(injector); err != nil {
			return err
		}
	}
	return nil
}

func warm[T any](i do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}
