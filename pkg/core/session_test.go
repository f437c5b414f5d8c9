package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

// sessionLog records every session notification.
type sessionLog struct {
	mu       sync.Mutex
	sessions []core.Session
}

func (l *sessionLog) record(s core.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, s)
}

func (l *sessionLog) all() []core.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Session(nil), l.sessions...)
}

func TestSessionResolvesAnonymous(t *testing.T) {
	sessions := core.NewSessionStore(newAuth(t), nil)
	defer sessions.Close()

	assert.True(t, sessions.Current().Loading)
	assert.False(t, sessions.Current().Authenticated())

	log := &sessionLog{}
	sessions.OnChange(log.record)
	assert.Empty(t, log.all(), "no notification before resolution")

	sessions.Start()
	sessions.Start()

	got := log.all()
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Identity)
	assert.False(t, got[0].Loading)

	s, err := sessions.WaitResolved(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Loading)
	assert.False(t, s.Authenticated())
}

func TestSessionLateListenerGetsCurrentState(t *testing.T) {
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()
	sessions.Start()

	require.NoError(t, sessions.SignIn(context.Background(), "ada@example.com", "secret1"))

	log := &sessionLog{}
	unsubscribe := sessions.OnChange(log.record)
	defer unsubscribe()

	got := log.all()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Identity)
	assert.Equal(t, "ada@example.com", got[0].Identity.Email)
}

func TestSessionSignInSignOutNotifyOnce(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	ada := addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()

	log := &sessionLog{}
	sessions.OnChange(log.record)
	sessions.Start()

	require.NoError(t, sessions.SignIn(ctx, "ADA@example.com ", "secret1"))
	got := log.all()
	require.Len(t, got, 2, "initial resolution plus exactly one sign-in")
	require.NotNil(t, got[1].Identity)
	assert.Equal(t, ada.UID, got[1].Identity.UID)
	assert.Equal(t, ada.UID, sessions.Current().UID())
	assert.False(t, sessions.Current().Loading)

	require.NoError(t, sessions.SignOut(ctx))
	got = log.all()
	require.Len(t, got, 3)
	assert.Nil(t, got[2].Identity)
	assert.False(t, sessions.Current().Authenticated())

	state := sessions.State().(core.SessionState)
	assert.Equal(t, uint64(3), state.Transitions)
	assert.True(t, state.Resolved)
}

func TestSessionSignInFailures(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()

	log := &sessionLog{}
	sessions.OnChange(log.record)
	sessions.Start()

	err := sessions.SignIn(ctx, "ada@example.com", "wrong-password")
	var authErr *core.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "sign-in", authErr.Op)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.Equal(t, "Invalid email or password", authErr.Message())

	err = sessions.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	down := errors.New("provider unavailable")
	auth.Fail(down)
	err = sessions.SignIn(ctx, "ada@example.com", "secret1")
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, "provider unavailable", authErr.Message())

	assert.Len(t, log.all(), 1, "failures never notify")
	assert.False(t, sessions.Current().Loading)
}

func TestSessionRegister(t *testing.T) {
	ctx := context.Background()
	sessions := core.NewSessionStore(newAuth(t), nil)
	defer sessions.Close()
	sessions.Start()

	require.NoError(t, sessions.Register(ctx, "Grace", "grace@example.com", "secret1"))
	current := sessions.Current()
	require.True(t, current.Authenticated())
	assert.Equal(t, "Grace", current.Identity.DisplayName)
	assert.Equal(t, "@Grace", current.Identity.Handle())

	require.NoError(t, sessions.SignOut(ctx))

	err := sessions.Register(ctx, "Grace", "grace@example.com", "secret1")
	var authErr *core.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "register", authErr.Op)
	assert.ErrorIs(t, err, core.ErrEmailInUse)
	assert.Equal(t, "This email is already registered", authErr.Message())

	err = sessions.Register(ctx, "Short", "short@example.com", "123")
	assert.ErrorIs(t, err, core.ErrWeakPassword)
	assert.False(t, sessions.Current().Authenticated())
}

func TestSessionLoadingWhileSignInInFlight(t *testing.T) {
	auth := &gatedAuth{Auth: newAuth(t), entered: make(chan struct{}, 1), release: make(chan struct{})}
	addAccount(t, auth.Auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()
	sessions.Start()
	require.False(t, sessions.Current().Loading)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sessions.SignIn(context.Background(), "ada@example.com", "secret1")
	}()

	<-auth.entered
	assert.True(t, sessions.Current().Loading)
	close(auth.release)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("sign-in did not complete")
	}
	assert.False(t, sessions.Current().Loading)
	assert.True(t, sessions.Current().Authenticated())
}

func TestSessionListenersRunInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()

	var (
		mu    sync.Mutex
		order []string
	)
	listen := func(name string) func(core.Session) {
		return func(core.Session) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	sessions.OnChange(listen("first"))
	sessions.OnChange(func(core.Session) { panic("listener bug") })
	sessions.OnChange(listen("second"))
	stopThird := sessions.OnChange(listen("third"))

	sessions.Start()
	stopThird()
	require.NoError(t, sessions.SignIn(ctx, "ada@example.com", "secret1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third", "first", "second"}, order)
}

func TestSessionReentrantListener(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)
	defer sessions.Close()
	sessions.Start()

	inner := &sessionLog{}
	var once sync.Once
	outer := &sessionLog{}
	sessions.OnChange(func(s core.Session) {
		outer.record(s)
		if s.Authenticated() {
			// Registering from inside a dispatch must not deadlock; the new
			// listener sees the state once the running dispatch finished.
			once.Do(func() { sessions.OnChange(inner.record) })
		}
	})

	require.NoError(t, sessions.SignIn(ctx, "ada@example.com", "secret1"))

	require.Len(t, outer.all(), 2)
	got := inner.all()
	require.Len(t, got, 1)
	assert.True(t, got[0].Authenticated())
}

func TestWaitResolvedHonorsContext(t *testing.T) {
	sessions := core.NewSessionStore(newAuth(t), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sessions.WaitResolved(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionCloseStopsObserving(t *testing.T) {
	auth := newAuth(t)
	sessions := core.NewSessionStore(auth, nil)
	sessions.Start()
	assert.Equal(t, 1, auth.Observers())

	sessions.Close()
	sessions.Close()
	assert.Zero(t, auth.Observers())
}

func TestSignOutDuringSlowSignInWins(t *testing.T) {
	ops := map[string]func(ctx context.Context, s *core.SessionStore) error{
		"sign-in": func(ctx context.Context, s *core.SessionStore) error {
			return s.SignIn(ctx, "ada@example.com", "secret1")
		},
		"register": func(ctx context.Context, s *core.SessionStore) error {
			return s.Register(ctx, "Grace", "grace@example.com", "secret1")
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			auth := newLateAuth(t)
			addAccount(t, auth.Auth, "Ada", "ada@example.com")
			svc := newService(t, memory.NewStore(), auth)
			sessions := svc.Sessions()
			svc.Start()

			errCh := make(chan error, 1)
			go func() { errCh <- op(ctx, sessions) }()

			<-auth.entered
			require.True(t, sessions.Current().Authenticated(), "observer reported the sign-in")
			require.NoError(t, sessions.SignOut(ctx))
			require.False(t, sessions.Current().Authenticated())

			close(auth.release)
			select {
			case err := <-errCh:
				require.NoError(t, err)
			case <-time.After(waitFor):
				t.Fatal("operation did not complete")
			}

			assert.Nil(t, providerIdentity(auth))
			assert.False(t, sessions.Current().Authenticated())
			assert.False(t, sessions.Current().Loading)
			assert.Equal(t, core.PhaseUnauthenticated, svc.Navigator().Current().Phase)
			assert.Zero(t, svc.Notes().ActiveSubscriptions())
		})
	}
}

func TestSignInWithoutObserverReportStillApplies(t *testing.T) {
	auth := newAuth(t)
	addAccount(t, auth, "Ada", "ada@example.com")
	sessions := core.NewSessionStore(auth, nil)

	// Not started: the provider observer is not registered, so the
	// operation result is the only report.
	require.NoError(t, sessions.SignIn(context.Background(), "ada@example.com", "secret1"))
	assert.True(t, sessions.Current().Authenticated())
}
