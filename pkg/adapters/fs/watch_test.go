package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func newWatchedStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(Config{Path: filepath.Join(t.TempDir(), "vault"), Watch: true})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestExternalEditsReachLiveQueries(t *testing.T) {
	store := newWatchedStore(t)

	snapshots := make(chan []core.Document, 32)
	stop, err := store.Listen(core.Query{
		Collection: "notes",
		Where:      []core.Filter{{Field: "ownerId", Value: "u1"}},
	}, func(docs []core.Document) {
		snapshots <- docs
	}, func(error) {})
	require.NoError(t, err)
	defer stop()

	waitForWatcher(t, store, true)

	dir := filepath.Join(store.Path, "notes")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "external.md"),
		[]byte("---\ntitle: From editor\nownerId: u1\n---\nhello\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case docs := <-snapshots:
			if len(docs) == 1 && docs[0].ID == "external" {
				assert.Equal(t, "From editor", docs[0].Fields["title"])
				assert.Equal(t, "hello\n", docs[0].Fields["content"])
				return
			}
		case <-deadline:
			t.Fatalf("external file never reached the live query")
		}
	}
}

func TestWatchFeedReportsExternalChanges(t *testing.T) {
	store := newWatchedStore(t)
	dir := filepath.Join(store.Path, "notes")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Watch(ctx, "notes")
	require.NoError(t, err)
	waitForWatcher(t, store, true)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "outside.md"), []byte("text"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, "notes", e.Collection)
		assert.Equal(t, "outside", e.ID)
	case <-time.After(3 * time.Second):
		t.Fatalf("no event for external write")
	}
}

func TestOwnWritesAreNotEchoed(t *testing.T) {
	store := newWatchedStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Watch(ctx, "notes")
	require.NoError(t, err)
	waitForWatcher(t, store, true)

	id, err := store.Add(context.Background(), "notes", core.Fields{"title": "mine"})
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, core.EventCreate, e.Type)
		assert.Equal(t, id, e.ID)
	case <-time.After(time.Second):
		t.Fatalf("no event for own write")
	}

	select {
	case e := <-events:
		t.Fatalf("unexpected echo event %v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherSupervisorRestarts(t *testing.T) {
	store := newWatchedStore(t)

	stop, err := store.Listen(core.Query{Collection: "notes"}, func([]core.Document) {}, func(error) {})
	require.NoError(t, err)
	defer stop()

	first := currentWorker(t, store, nil)
	waitForWatcherInit(t, first)
	waitForWatcher(t, store, true)

	first.mu.Lock()
	_ = first.watcher.Close()
	first.mu.Unlock()

	second := currentWorker(t, store, first)
	if first == second {
		t.Fatalf("expected supervisor to restart watcher with a new instance")
	}
	waitForWatcher(t, store, true)

	state := store.State().(StoreState)
	assert.Equal(t, 1, state.Restarts)
}

func currentWorker(t *testing.T, store *Store, previous *watchWorker) *watchWorker {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		store.mu.RLock()
		w := store.watcher
		store.mu.RUnlock()
		if w != nil && w != previous {
			return w
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watch worker")
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForWatcherInit(t *testing.T, w *watchWorker) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		w.mu.Lock()
		ready := w.watcher != nil
		w.mu.Unlock()
		if ready {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watcher initialization")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForWatcher(t *testing.T, store *Store, expected bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		state, ok := store.State().(StoreState)
		if ok && state.WatcherActive == expected {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watcher state = %v", expected)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
