package di

import (
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-player/internal/di/providers"
	"github.com/listenupapp/listenup-player/internal/domain"
)

func testArgs(t *testing.T, dataPath string) []string {
	t.Helper()
	return []string{
		"-data-path", dataPath,
		"-env-file", filepath.Join(t.TempDir(), "missing.env"),
		"-log-level", "error",
		"-remote", "false",
	}
}

func TestBootstrap_HeadlessPlayer(t *testing.T) {
	injector := NewContainer(testArgs(t, t.TempDir()))
	require.NoError(t, Bootstrap(injector))
	t.Cleanup(func() { _ = injector.Shutdown() })

	coord := do.MustInvoke[*providers.CoordinatorHandle](injector)
	assert.Equal(t, domain.PhaseIdle, coord.Snapshot().Phase)
	assert.InDelta(t, 1.0, coord.Snapshot().Rate, 1e-9)

	inst := do.MustInvoke[*domain.Instance](injector)
	assert.NotEmpty(t, inst.ID)

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	assert.Nil(t, srv.Server)

	lw := do.MustInvoke[*providers.LibraryWatcherHandle](injector)
	assert.Nil(t, lw.Watcher)
}

func TestBootstrap_WatchFolder(t *testing.T) {
	watchDir := filepath.Join(t.TempDir(), "incoming")
	args := append(testArgs(t, t.TempDir()), "-watch", watchDir, "-settle-delay", "20ms")

	injector := NewContainer(args)
	require.NoError(t, Bootstrap(injector))
	t.Cleanup(func() { _ = injector.Shutdown() })

	lw := do.MustInvoke[*providers.LibraryWatcherHandle](injector)
	assert.NotNil(t, lw.Watcher)
	assert.DirExists(t, watchDir)
}

func TestBootstrap_SecondPlayerOnSameDataDir(t *testing.T) {
	dataPath := t.TempDir()

	first := NewContainer(testArgs(t, dataPath))
	require.NoError(t, Bootstrap(first))
	t.Cleanup(func() { _ = first.Shutdown() })

	second := NewContainer(testArgs(t, dataPath))
	err := Bootstrap(second)
	require.Error(t, err)
	assert.ErrorContains(t, err, "another player is already using")
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	args := append(testArgs(t, t.TempDir()), "-tick-interval", "soon")

	injector := NewContainer(args)
	assert.Error(t, Bootstrap(injector))
}
