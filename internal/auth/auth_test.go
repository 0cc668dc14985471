package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/backend"
	"chat-client/internal/credentials"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/notify"
)

type observerRecorder struct {
	mu      sync.Mutex
	started []Session
	ended   []string
}

func (o *observerRecorder) SessionStarted(_ context.Context, s Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, s)
}

func (o *observerRecorder) SessionEnded(_ context.Context, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, reason)
}

type notes struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (n *notes) Notify(_ context.Context, note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, note.Kind)
}

var alice = models.User{ID: "1", Username: "alice", FullName: "Alice", AccessLevel: models.AccessCoordinator}

func newAuth(b Backend, store credentials.Store) (*Authenticator, *observerRecorder, *notes) {
	n := &notes{}
	a := New(Config{Backend: b, Store: store, Notifier: n})
	obs := &observerRecorder{}
	a.AddObserver(obs)
	return a, obs, n
}

func saved(t *testing.T, store credentials.Store, key string) string {
	t.Helper()
	v, err := store.Get(context.Background(), key)
	if errors.Is(err, credentials.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return string(v)
}

func TestLoginPersistsAndStartsSession(t *testing.T) {
	b := new(mocks.BackendMock)
	b.On("Login", mock.Anything, "alice", "secret").
		Return(&backend.LoginResponse{AccessToken: "tok", User: alice}, nil)
	store := credentials.NewMemoryStore()
	a, obs, n := newAuth(b, store)

	s, err := a.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, "tok", a.Token())

	assert.Equal(t, "tok", saved(t, store, credentials.KeyToken))
	assert.Contains(t, saved(t, store, credentials.KeyUser), `"username":"alice"`)
	require.Len(t, obs.started, 1)
	assert.Equal(t, alice, obs.started[0].User)
	assert.Equal(t, []notify.Kind{notify.KindLoggedIn}, n.kinds)

	assert.True(t, a.IsCoordinator())
	assert.False(t, a.IsAdmin())
	b.AssertExpectations(t)
}

func TestLoginErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"rejected", &backend.APIError{StatusCode: 401, Detail: "bad"}, InvalidCredentials},
		{"validation", &backend.APIError{StatusCode: 422}, InvalidCredentials},
		{"server", &backend.APIError{StatusCode: 503}, ServerError},
		{"network", errors.New("dial tcp: connection refused"), NetworkUnavailable},
		{"missing credentials", backend.ErrMissingCredentials, InvalidCredentials},
		{"malformed success", &backend.ResponseError{Operation: "login", Err: errors.New("missing access_token")}, ServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(mocks.BackendMock)
			b.On("Login", mock.Anything, "alice", "pw").Return(nil, tt.err)
			store := new(mocks.CredentialStoreMock)
			a, obs, _ := newAuth(b, store)

			_, err := a.Login(context.Background(), "alice", "pw")
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
			assert.NotEmpty(t, Message(err))

			_, ok := a.Current()
			assert.False(t, ok)
			assert.Empty(t, obs.started)
			store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRestoreWithoutTokenReturnsNothing(t *testing.T) {
	a, obs, _ := newAuth(new(mocks.BackendMock), credentials.NewMemoryStore())

	s, ok := a.RestoreSession(context.Background())
	assert.False(t, ok)
	assert.Nil(t, s)
	assert.Empty(t, obs.started)
}

func TestRestoreIsOptimisticThenValidated(t *testing.T) {
	store := credentials.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, credentials.KeyToken, []byte("tok")))
	require.NoError(t, store.Put(ctx, credentials.KeyUser, []byte(`{"id":1,"username":"alice"}`)))

	release := make(chan time.Time)
	b := new(mocks.BackendMock)
	refreshed := alice
	refreshed.FullName = "Alice Renamed"
	b.On("Me", mock.Anything, "tok").WaitUntil(release).Return(&refreshed, nil)

	a, obs, _ := newAuth(b, store)
	s, ok := a.RestoreSession(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, models.ID("1"), s.User.ID)
	assert.Equal(t, "tok", a.Token())

	close(release)
	a.Wait()

	current, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, "Alice Renamed", current.User.FullName)
	assert.Contains(t, saved(t, store, credentials.KeyUser), "Alice Renamed")
	assert.Len(t, obs.started, 1)
}

func TestRestoreWithoutCachedProfileRestartsOnValidation(t *testing.T) {
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), credentials.KeyToken, []byte("tok")))
	b := new(mocks.BackendMock)
	b.On("Me", mock.Anything, "tok").Return(&alice, nil)

	a, obs, _ := newAuth(b, store)
	_, ok := a.RestoreSession(context.Background())
	require.True(t, ok)
	a.Wait()

	require.Len(t, obs.started, 2)
	assert.True(t, obs.started[0].User.ID.IsZero())
	assert.Equal(t, alice, obs.started[1].User)
}

func TestRestoreWithRejectedTokenTearsDown(t *testing.T) {
	store := credentials.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, credentials.KeyToken, []byte("stale")))
	b := new(mocks.BackendMock)
	b.On("Me", mock.Anything, "stale").Return(nil, &backend.APIError{StatusCode: 401})

	a, obs, n := newAuth(b, store)
	_, ok := a.RestoreSession(ctx)
	require.True(t, ok)
	a.Wait()

	_, ok = a.Current()
	assert.False(t, ok)
	assert.Empty(t, a.Token())
	assert.Empty(t, saved(t, store, credentials.KeyToken))
	assert.Equal(t, []string{ReasonTokenInvalid}, obs.ended)
	assert.Contains(t, n.kinds, notify.KindSessionExpired)
	b.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestRestoreKeepsSessionWhenBackendUnreachable(t *testing.T) {
	store := credentials.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), credentials.KeyToken, []byte("tok")))
	b := new(mocks.BackendMock)
	b.On("Me", mock.Anything, "tok").Return(nil, errors.New("connection refused"))

	a, obs, _ := newAuth(b, store)
	_, ok := a.RestoreSession(context.Background())
	require.True(t, ok)
	a.Wait()

	assert.Equal(t, "tok", a.Token())
	assert.Equal(t, "tok", saved(t, store, credentials.KeyToken))
	assert.Empty(t, obs.ended)
}

func TestLogoutIsBestEffortAndIdempotent(t *testing.T) {
	b := new(mocks.BackendMock)
	b.On("Login", mock.Anything, "alice", "secret").
		Return(&backend.LoginResponse{AccessToken: "tok", User: alice}, nil)
	b.On("Logout", mock.Anything, "tok").Return(errors.New("timeout")).Once()
	store := credentials.NewMemoryStore()
	a, obs, n := newAuth(b, store)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	a.Logout(ctx)
	a.Logout(ctx)

	_, ok := a.Current()
	assert.False(t, ok)
	assert.Empty(t, saved(t, store, credentials.KeyToken))
	assert.Empty(t, saved(t, store, credentials.KeyUser))
	assert.Equal(t, []string{ReasonLogout}, obs.ended)
	assert.Equal(t, []notify.Kind{notify.KindLoggedIn, notify.KindLoggedOut}, n.kinds)
	b.AssertNumberOfCalls(t, "Logout", 1)
}

func TestInvalidate(t *testing.T) {
	b := new(mocks.BackendMock)
	b.On("Login", mock.Anything, "alice", "secret").
		Return(&backend.LoginResponse{AccessToken: "tok", User: alice}, nil)
	store := credentials.NewMemoryStore()
	a, obs, _ := newAuth(b, store)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	a.Invalidate(ctx, "")
	a.Invalidate(ctx, "")

	assert.Empty(t, a.Token())
	assert.Empty(t, saved(t, store, credentials.KeyToken))
	assert.Equal(t, []string{ReasonTokenInvalid}, obs.ended)
	b.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}

func TestInvalidateTokenIgnoresNewerSession(t *testing.T) {
	b := new(mocks.BackendMock)
	b.On("Login", mock.Anything, "alice", "secret").
		Return(&backend.LoginResponse{AccessToken: "old", User: alice}, nil).Once()
	b.On("Login", mock.Anything, "alice", "secret").
		Return(&backend.LoginResponse{AccessToken: "new", User: alice}, nil).Once()
	store := credentials.NewMemoryStore()
	a, obs, _ := newAuth(b, store)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = a.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	a.InvalidateToken(ctx, "old", "")
	a.InvalidateToken(ctx, "", "")
	assert.Equal(t, "new", a.Token())
	assert.Equal(t, "new", saved(t, store, credentials.KeyToken))
	assert.Empty(t, obs.ended)

	a.InvalidateToken(ctx, "new", "")
	assert.Empty(t, a.Token())
	assert.Equal(t, []string{ReasonTokenInvalid}, obs.ended)
}

func TestObserverFuncs(t *testing.T) {
	var started, ended bool
	o := ObserverFuncs{
		Started: func(context.Context, Session) { started = true },
		Ended:   func(context.Context, string) { ended = true },
	}
	o.SessionStarted(context.Background(), Session{})
	o.SessionEnded(context.Background(), ReasonLogout)
	ObserverFuncs{}.SessionEnded(context.Background(), ReasonLogout)

	assert.True(t, started)
	assert.True(t, ended)
}
