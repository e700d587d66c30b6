package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()

	w, err := New(nil, opts)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, w.Watch(dir))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(t.Context())
	}()
	t.Cleanup(func() {
		_ = w.Stop()
		<-done
	})
	return w, dir
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestWatcher_ReportsSettledFile(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	path := filepath.Join(dir, "episode.mp3")
	require.NoError(t, os.WriteFile(path, []byte("id3 and audio"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, path, ev.Path)
	assert.EqualValues(t, len("id3 and audio"), ev.Size)
}

func TestWatcher_AcceptFilter(t *testing.T) {
	w, dir := startWatcher(t, Options{
		SettleDelay: 30 * time.Millisecond,
		Accept:      func(path string) bool { return strings.HasSuffix(path, ".m4a") },
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	want := filepath.Join(dir, "episode.m4a")
	require.NoError(t, os.WriteFile(want, []byte("x"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, want, ev.Path)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 30 * time.Millisecond})

	sub := filepath.Join(dir, "show")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(sub, "ep1.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_RemovedBeforeSettling(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: time.Second})

	path := filepath.Join(dir, "partial.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	ev := nextEvent(t, w)
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_WatchRejectsFile(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	file := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Error(t, w.Watch(file))
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestOptions_Ignored(t *testing.T) {
	opts := Options{}
	assert.True(t, opts.ignored("/library/.partial/ep.mp3"))
	assert.True(t, opts.ignored("/library/.ep.mp3.swp"))
	assert.False(t, opts.ignored("/library/show/ep.mp3"))

	opts.IncludeHidden = true
	assert.False(t, opts.ignored("/library/.partial/ep.mp3"))
}

func TestStop_Idempotent(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
