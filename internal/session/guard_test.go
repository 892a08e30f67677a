package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type fakeAuth struct {
	verifyCalls atomic.Int32
	gate        chan struct{}
	started     chan struct{}

	users    map[string]domain.User
	password string

	// loginGate, when set, holds Login until it is closed.
	loginGate    chan struct{}
	loginStarted chan struct{}
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users:    make(map[string]domain.User),
		password: "secret",
		started:  make(chan struct{}, 16),
	}
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (domain.AuthResult, error) {
	if f.loginGate != nil {
		f.loginStarted <- struct{}{}
		<-f.loginGate
	}
	if password != f.password {
		return domain.AuthResult{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized,
			&domain.APIError{StatusCode: 401, Message: "Invalid email or password"})
	}
	token := gofakeit.UUID()
	user := domain.User{ID: gofakeit.Int64(), FullName: gofakeit.Name(), Email: email}
	f.users[token] = user
	return domain.AuthResult{Token: token, User: user, Message: "Login successful"}, nil
}

func (f *fakeAuth) Register(_ context.Context, fullName, email, _ string) (domain.AuthResult, error) {
	token := gofakeit.UUID()
	user := domain.User{ID: gofakeit.Int64(), FullName: fullName, Email: email}
	f.users[token] = user
	return domain.AuthResult{Token: token, User: user, Message: "User registered successfully"}, nil
}

func (f *fakeAuth) Verify(_ context.Context, token string) (domain.User, error) {
	f.verifyCalls.Add(1)
	f.started <- struct{}{}
	if f.gate != nil {
		<-f.gate
	}
	user, ok := f.users[token]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized,
			&domain.APIError{StatusCode: 401, Message: "Invalid token"})
	}
	return user, nil
}

type memStore struct {
	mu      sync.Mutex
	token   string
	saveErr error
	delErr  error

	// onDelete runs once, at the start of the next Delete.
	onDelete func()
}

func (s *memStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", domain.ErrTokenNotFound
	}
	return s.token, nil
}

func (s *memStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.token = token
	return nil
}

func (s *memStore) Delete(context.Context) error {
	s.mu.Lock()
	hook := s.onDelete
	s.onDelete = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	s.token = ""
	return nil
}

func (s *memStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func newGuard(t *testing.T, auth *fakeAuth, store *memStore) *Guard {
	t.Helper()

	g, err := New(auth, store, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	_, err := New(nil, &memStore{})
	require.Error(t, err)

	_, err = New(newFakeAuth(), nil)
	require.Error(t, err)
}

func TestInitialState(t *testing.T) {
	g := newGuard(t, newFakeAuth(), &memStore{})

	s := g.Snapshot()
	assert.Equal(t, domain.StatusUnauthenticated, s.Status)
	assert.False(t, g.Resolved())
	assert.Empty(t, g.Token())
}

func TestVerify_NoToken(t *testing.T) {
	auth := newFakeAuth()
	g := newGuard(t, auth, &memStore{})

	s, err := g.Verify(t.Context())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnauthenticated, s.Status)
	assert.True(t, g.Resolved())
	assert.Zero(t, auth.verifyCalls.Load(), "no token must mean no network call")
}

func TestVerify_RejectedToken(t *testing.T) {
	auth := newFakeAuth()
	store := &memStore{token: "expired"}
	g := newGuard(t, auth, store)

	s, err := g.Verify(t.Context())

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.StatusUnauthenticated, s.Status)
	assert.Equal(t, "Invalid token", s.Err)
	assert.Nil(t, s.User)
	assert.Empty(t, store.Token(), "rejected token must be cleared")
	assert.True(t, g.Resolved())
}

func TestVerify_AcceptedToken(t *testing.T) {
	auth := newFakeAuth()
	user := domain.User{ID: 42, FullName: "Njeri Kamau", Email: "njeri@duka.ke"}
	auth.users["good"] = user
	store := &memStore{token: "good"}
	g := newGuard(t, auth, store)

	s, err := g.Verify(t.Context())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAuthenticated, s.Status)
	require.NotNil(t, s.User)
	assert.Equal(t, user, *s.User)
	assert.Equal(t, "good", g.Token())
	assert.Equal(t, "good", store.Token())
}

func TestStart_VerifyingIsSynchronous(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	auth.users["good"] = domain.User{ID: 1}
	auth.gate = make(chan struct{})
	g, err := New(auth, &memStore{token: "good"})
	require.NoError(t, err)

	done := g.Start(t.Context())

	assert.Equal(t, domain.StatusVerifying, g.Snapshot().Status)
	assert.False(t, g.Resolved())
	assert.Empty(t, g.Token(), "token is not usable while verifying")

	close(auth.gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not finish")
	}

	assert.Equal(t, domain.StatusAuthenticated, g.Snapshot().Status)
	assert.True(t, g.Resolved())
}

func TestStart_NoToken(t *testing.T) {
	auth := newFakeAuth()
	g := newGuard(t, auth, &memStore{})

	done := g.Start(t.Context())

	select {
	case <-done:
	default:
		t.Fatal("start without a token must resolve immediately")
	}
	assert.Equal(t, domain.StatusUnauthenticated, g.Snapshot().Status)
	assert.True(t, g.Resolved())
	assert.Zero(t, auth.verifyCalls.Load())
}

func TestVerify_ConcurrentCallsShareOneRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	auth.users["good"] = domain.User{ID: 1}
	auth.gate = make(chan struct{})
	g, err := New(auth, &memStore{token: "good"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]domain.Session, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = g.Verify(context.Background())
		}()
	}

	<-auth.started
	assert.Equal(t, domain.StatusVerifying, g.Snapshot().Status)
	// let the remaining callers join the in-flight check
	time.Sleep(50 * time.Millisecond)
	close(auth.gate)
	wg.Wait()

	assert.Equal(t, int32(1), auth.verifyCalls.Load())
	for _, s := range results {
		assert.Equal(t, domain.StatusAuthenticated, s.Status)
	}
}

func TestVerify_CallerCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	auth.users["good"] = domain.User{ID: 1}
	auth.gate = make(chan struct{})
	store := &memStore{token: "good"}
	g, err := New(auth, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.Verify(ctx)
		errCh <- err
	}()

	<-auth.started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(auth.gate)
	require.Eventually(t, func() bool { return g.Resolved() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StatusAuthenticated, g.Snapshot().Status)
	assert.Equal(t, "good", store.Token(), "a cancelled caller must not cost the token")
}

func TestLogin(t *testing.T) {
	auth := newFakeAuth()
	store := &memStore{}
	g := newGuard(t, auth, store)
	email := gofakeit.Email()

	s, err := g.Login(t.Context(), email, "secret")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAuthenticated, s.Status)
	require.NotNil(t, s.User)
	assert.Equal(t, email, s.User.Email)
	assert.Equal(t, s.Token, store.Token())
	assert.Equal(t, s.Token, g.Token())
}

func TestLogin_FailureKeepsPriorSession(t *testing.T) {
	auth := newFakeAuth()
	store := &memStore{}
	g := newGuard(t, auth, store)

	prior, err := g.Login(t.Context(), "a@duka.ke", "secret")
	require.NoError(t, err)

	s, err := g.Login(t.Context(), "a@duka.ke", "wrong")

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid email or password", authErr.Message)
	assert.Equal(t, domain.StatusError, s.Status)
	assert.Equal(t, "Invalid email or password", s.Err)
	assert.Equal(t, prior.Token, s.Token)
	assert.Equal(t, prior.User, s.User)
	assert.Equal(t, prior.Token, store.Token())

	s, err = g.Login(t.Context(), "a@duka.ke", "secret")
	require.NoError(t, err)
	assert.Empty(t, s.Err, "error is cleared by the next attempt")
}

func TestLogin_StoreFailureStillSignsIn(t *testing.T) {
	g := newGuard(t, newFakeAuth(), &memStore{saveErr: errors.New("disk full")})

	s, err := g.Login(t.Context(), "a@duka.ke", "secret")
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
}

func TestRegister(t *testing.T) {
	auth := newFakeAuth()
	store := &memStore{}
	g := newGuard(t, auth, store)

	s, err := g.Register(t.Context(), "Kiprono Langat", "k@duka.ke", "pw")
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.Equal(t, "Kiprono Langat", s.User.FullName)
	assert.Equal(t, s.Token, store.Token())
}

func TestLogout(t *testing.T) {
	store := &memStore{}
	g := newGuard(t, newFakeAuth(), store)
	_, err := g.Login(t.Context(), "a@duka.ke", "secret")
	require.NoError(t, err)

	changed := g.Changed()
	g.Logout(t.Context())

	s := g.Snapshot()
	assert.Equal(t, domain.StatusUnauthenticated, s.Status)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Token)
	assert.Empty(t, store.Token())
	assert.True(t, g.Resolved())

	select {
	case <-changed:
	default:
		t.Fatal("logout must signal a change")
	}
}

func TestLogout_StoreFailureIsSwallowed(t *testing.T) {
	store := &memStore{delErr: errors.New("read-only")}
	g := newGuard(t, newFakeAuth(), store)

	g.Logout(t.Context())

	assert.Equal(t, domain.StatusUnauthenticated, g.Snapshot().Status)
}

func TestLogout_DuringVerifyWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	auth.users["good"] = domain.User{ID: 1}
	auth.gate = make(chan struct{})
	g, err := New(auth, &memStore{token: "good"})
	require.NoError(t, err)

	done := g.Start(t.Context())
	<-auth.started
	g.Logout(t.Context())
	close(auth.gate)
	<-done

	assert.Equal(t, domain.StatusUnauthenticated, g.Snapshot().Status)
	assert.Empty(t, g.Token())
}

func TestVerify_WithFileTokenStore(t *testing.T) {
	store, err := repository.NewFileTokenStore(t.TempDir() + "/token")
	require.NoError(t, err)

	auth := newFakeAuth()
	g, err := New(auth, store, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	s, err := g.Login(t.Context(), "a@duka.ke", "secret")
	require.NoError(t, err)

	restarted, err := New(auth, store)
	require.NoError(t, err)

	<-restarted.Start(t.Context())
	got := restarted.Snapshot()
	assert.True(t, got.Authenticated())
	assert.Equal(t, s.User, got.User)

	restarted.Logout(t.Context())
	_, err = store.Load(t.Context())
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestVerify_LoginDuringTokenDeletionKeepsNewToken(t *testing.T) {
	auth := newFakeAuth()
	store := &memStore{token: "expired"}
	g := newGuard(t, auth, store)

	var fresh domain.Session
	store.onDelete = func() {
		s, err := g.Login(context.Background(), "wanjiru@duka.ke", "secret")
		assert.NoError(t, err)
		fresh = s
	}

	_, err := g.Verify(t.Context())
	require.Error(t, err)

	s := g.Snapshot()
	require.True(t, s.Authenticated())
	assert.Equal(t, fresh.Token, s.Token)
	assert.Equal(t, fresh.Token, store.Token(), "the rejected token's deletion must not remove the newer one")
}

func TestVerify_LoginRacingTokenDeletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	store := &memStore{token: "expired"}
	g := newGuard(t, auth, store)

	deleting, release := make(chan struct{}), make(chan struct{})
	store.onDelete = func() {
		close(deleting)
		<-release
	}

	verified := make(chan error, 1)
	go func() {
		_, err := g.Verify(context.Background())
		verified <- err
	}()
	<-deleting

	signedIn := make(chan domain.Session, 1)
	go func() {
		s, _ := g.Login(context.Background(), "wanjiru@duka.ke", "secret")
		signedIn <- s
	}()
	s := <-signedIn
	close(release)
	require.Error(t, <-verified)

	require.True(t, s.Authenticated())
	assert.True(t, g.Snapshot().Authenticated())
	assert.Equal(t, s.Token, store.Token())
}

func TestLogin_LogoutDuringLoginWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	auth := newFakeAuth()
	auth.loginGate = make(chan struct{})
	auth.loginStarted = make(chan struct{}, 1)
	store := &memStore{}
	g := newGuard(t, auth, store)

	type result struct {
		s   domain.Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := g.Login(context.Background(), "wanjiru@duka.ke", "secret")
		done <- result{s, err}
	}()
	<-auth.loginStarted

	g.Logout(t.Context())
	close(auth.loginGate)
	res := <-done

	require.ErrorIs(t, res.err, ErrSuperseded)
	var authErr *domain.AuthError
	require.ErrorAs(t, res.err, &authErr)

	assert.Equal(t, domain.StatusUnauthenticated, res.s.Status)
	assert.Equal(t, domain.StatusUnauthenticated, g.Snapshot().Status)
	assert.Empty(t, g.Token())
	assert.Empty(t, store.Token())
}
