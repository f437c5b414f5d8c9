package core_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

func TestEndToEndNewestFirst(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	svc := newService(t, memory.NewStore(), auth)
	nav := svc.Navigator()
	svc.Start()
	list := signIn(t, nav, "ada@example.com")

	for _, title := range []string{"A", "B"} {
		editor, err := list.OpenEditor(nil)
		require.NoError(t, err)
		require.NoError(t, editor.Save(ctx, title, ""))
	}

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"B", "A"}, titles(list.Notes()))
	}, waitFor, tick)
	for _, n := range list.Notes() {
		assert.Equal(t, list.Identity().UID, n.OwnerID)
		assert.NotNil(t, n.CreatedAt)
		assert.NotNil(t, n.UpdatedAt)
	}
}

func TestServiceCloseReleasesEverything(t *testing.T) {
	store := memory.NewStore()
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")

	closed := 0
	failing := errors.New("flush failed")
	svc := core.NewService(store, auth, core.ServiceConfig{
		Closers: []io.Closer{
			store,
			closerFunc(func() error { closed++; return nil }),
			closerFunc(func() error { closed++; return failing }),
		},
	})
	svc.Start()
	signIn(t, svc.Navigator(), "ada@example.com")
	require.Equal(t, 1, svc.Notes().ActiveSubscriptions())

	err := svc.Close()
	assert.ErrorIs(t, err, failing)
	assert.Equal(t, 2, closed)
	assert.Zero(t, svc.Notes().ActiveSubscriptions())
	assert.Zero(t, auth.Observers())
	assert.Equal(t, core.PhaseResolving, svc.Navigator().Current().Phase)

	assert.NoError(t, svc.Close())
	assert.Equal(t, 2, closed)

	svc.Start()
	assert.Zero(t, auth.Observers(), "a closed service does not restart")
}

func TestServiceWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newService(t, memory.NewStore(), newAuth(t))

	events, err := svc.Watch(ctx)
	require.NoError(t, err)

	id, err := svc.Notes().Create(ctx, "u1", "watched", "")
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, core.EventCreate, e.Type)
		assert.Equal(t, core.NotesCollection, e.Collection)
		assert.Equal(t, id, e.ID)
		assert.Equal(t, "CREATE notes/"+id, e.String())
	case <-time.After(waitFor):
		t.Fatal("no change event")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, waitFor, tick)
}

func TestServiceWatchUnsupported(t *testing.T) {
	base := memory.NewStore()
	defer base.Close()
	svc := newService(t, struct{ core.DocumentStore }{base}, newAuth(t))

	_, err := svc.Watch(context.Background())
	assert.ErrorIs(t, err, core.ErrWatchUnsupported)
}

func TestServiceState(t *testing.T) {
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	svc := newService(t, memory.NewStore(), auth)
	svc.Start()
	signIn(t, svc.Navigator(), "ada@example.com")

	state := svc.State().(core.ServiceState)
	assert.Equal(t, "memory-store", state.StoreType)
	assert.Equal(t, "memory-auth", state.ProviderType)
	assert.True(t, state.Session.Authenticated)
	assert.Equal(t, 1, state.Notes.ActiveSubscriptions)
	assert.Equal(t, core.NotesCollection, state.Notes.Collection)
	assert.Equal(t, "authenticated", state.Navigator.Phase)
	assert.Equal(t, []string{"note-list"}, state.Navigator.Screens)
	assert.Equal(t, "service", svc.ComponentType())
}
