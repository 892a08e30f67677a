// Package session owns the bearer token lifecycle and the identity derived from it.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is returned by a sign-in overtaken by a later sign-in or sign-out.
var ErrSuperseded = errors.New("sign-in was superseded")

var (
	errNilAuthenticator = errors.New("authenticator is nil")
	errNilTokenStore    = errors.New("token store is nil")
)

// Guard is created once per process and shared by every consumer that needs
// to know who is signed in.
type Guard struct {
	auth   port.Authenticator
	store  port.TokenStore
	logger *zap.Logger
	group  singleflight.Group

	mu       sync.Mutex
	session  domain.Session
	resolved bool
	gen      uint64
	changed  chan struct{}

	// persisted is the token the store should hold, empty for none.
	// persistedVer counts its changes.
	persisted    string
	persistedVer uint64
}

type Option func(*Guard)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(auth port.Authenticator, store port.TokenStore, opts ...Option) (*Guard, error) {
	if auth == nil {
		return nil, errNilAuthenticator
	}
	if store == nil {
		return nil, errNilTokenStore
	}

	g := &Guard{
		auth:    auth,
		store:   store,
		logger:  zap.NewNop(),
		session: domain.Session{Status: domain.StatusUnauthenticated},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *Guard) Login(ctx context.Context, email, password string) (domain.Session, error) {
	gen := g.begin()
	res, err := g.auth.Login(ctx, email, password)
	return g.acquire(ctx, gen, "login", res, err)
}

// Register creates the account and signs it in.
func (g *Guard) Register(ctx context.Context, fullName, email, password string) (domain.Session, error) {
	gen := g.begin()
	res, err := g.auth.Register(ctx, fullName, email, password)
	return g.acquire(ctx, gen, "register", res, err)
}

// begin clears the last error and invalidates verifications started earlier.
func (g *Guard) begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	if g.session.Err != "" {
		g.session.Err = ""
		g.notifyLocked()
	}
	return g.gen
}

func (g *Guard) acquire(ctx context.Context, gen uint64, op string, res domain.AuthResult, err error) (domain.Session, error) {
	if err != nil {
		authErr := &domain.AuthError{Message: domain.UserMessage(err), Err: err}

		g.mu.Lock()
		defer g.mu.Unlock()

		g.logger.Info(op+" failed", zap.Error(err))
		if gen == g.gen {
			g.session.Status = domain.StatusError
			g.session.Err = authErr.Message
			g.resolved = true
			g.notifyLocked()
		}
		return g.snapshotLocked(), authErr
	}

	user := res.User

	g.mu.Lock()
	if gen != g.gen {
		s := g.snapshotLocked()
		g.mu.Unlock()

		g.logger.Info(op+" superseded", zap.Int64("user_id", user.ID))
		return s, &domain.AuthError{Message: "sign-in was cancelled by a newer sign-in or sign-out", Err: ErrSuperseded}
	}
	g.session = domain.Session{Token: res.Token, User: &user, Status: domain.StatusAuthenticated}
	g.resolved = true
	g.notifyLocked()
	g.setPersistedLocked(res.Token)
	s := g.snapshotLocked()
	g.mu.Unlock()

	g.persist(ctx, op)
	g.logger.Info(op+" succeeded", zap.Int64("user_id", user.ID))

	return s, nil
}

type verifyResult struct {
	session domain.Session
	err     error
}

// Verify checks the persisted token with the backend. Without a persisted
// token it resolves to unauthenticated and makes no call. A rejected token is
// deleted. Concurrent calls share one check.
func (g *Guard) Verify(ctx context.Context) (domain.Session, error) {
	ch := g.group.DoChan("verify", func() (any, error) {
		s, err := g.verify(context.WithoutCancel(ctx))
		return verifyResult{session: s, err: err}, nil
	})

	select {
	case <-ctx.Done():
		return g.Snapshot(), ctx.Err()
	case r := <-ch:
		res := r.Val.(verifyResult)
		return res.session, res.err
	}
}

// Start enters the verifying state before returning when a token is
// persisted and completes the check in the background. The returned channel
// is closed once the session is resolved.
func (g *Guard) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	token, ok := g.loadToken(ctx)
	if !ok {
		g.setUnauthenticated(g.generation(), "")
		close(done)
		return done
	}

	g.setVerifying(g.generation(), token)
	go func() {
		defer close(done)
		if _, err := g.Verify(ctx); err != nil {
			g.logger.Debug("startup verification failed", zap.Error(err))
		}
	}()

	return done
}

func (g *Guard) verify(ctx context.Context) (domain.Session, error) {
	gen := g.generation()

	token, ok := g.loadToken(ctx)
	if !ok {
		return g.setUnauthenticated(gen, ""), nil
	}

	g.setVerifying(gen, token)

	user, err := g.auth.Verify(ctx, token)
	if err != nil {
		authErr := &domain.AuthError{Message: domain.UserMessage(err), Err: err}

		g.mu.Lock()
		if gen != g.gen {
			s := g.snapshotLocked()
			g.mu.Unlock()
			return s, authErr
		}
		g.session = domain.Session{Status: domain.StatusUnauthenticated, Err: authErr.Message}
		g.resolved = true
		g.notifyLocked()
		g.setPersistedLocked("")
		s := g.snapshotLocked()
		g.mu.Unlock()

		g.logger.Info("session token rejected", zap.Error(err))
		g.persist(ctx, "verify")

		return s, authErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if gen == g.gen {
		g.session = domain.Session{Token: token, User: &user, Status: domain.StatusAuthenticated}
		g.resolved = true
		g.notifyLocked()
	}

	return g.snapshotLocked(), nil
}

func (g *Guard) loadToken(ctx context.Context) (string, bool) {
	token, err := g.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenNotFound) {
			g.logger.Warn("failed to load session token", zap.Error(err))
		}
		return "", false
	}
	return token, token != ""
}

func (g *Guard) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.gen
}

func (g *Guard) setVerifying(gen uint64, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen == g.gen {
		g.session = domain.Session{Token: token, Status: domain.StatusVerifying}
		g.notifyLocked()
	}
}

func (g *Guard) setUnauthenticated(gen uint64, msg string) domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen == g.gen {
		g.session = domain.Session{Status: domain.StatusUnauthenticated, Err: msg}
		g.resolved = true
		g.notifyLocked()
	}

	return g.snapshotLocked()
}

// Logout forgets the token and the user. It never fails.
func (g *Guard) Logout(ctx context.Context) {
	g.mu.Lock()
	g.gen++
	g.session = domain.Session{Status: domain.StatusUnauthenticated}
	g.resolved = true
	g.notifyLocked()
	g.setPersistedLocked("")
	g.mu.Unlock()

	g.persist(ctx, "logout")
}

func (g *Guard) setPersistedLocked(token string) {
	g.persisted = token
	g.persistedVer++
}

// persist writes the token the session should keep to the store. A write
// that raced with a newer sign-in or sign-out is redone with the newer value.
func (g *Guard) persist(ctx context.Context, op string) {
	for {
		g.mu.Lock()
		token, ver := g.persisted, g.persistedVer
		g.mu.Unlock()

		var err error
		if token == "" {
			err = g.store.Delete(ctx)
		} else {
			err = g.store.Save(ctx, token)
		}
		if err != nil {
			g.logger.Warn("failed to persist session token", zap.String("op", op), zap.Error(err))
		}

		g.mu.Lock()
		current := ver == g.persistedVer
		g.mu.Unlock()
		if current {
			return
		}
	}
}

func (g *Guard) Snapshot() domain.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.snapshotLocked()
}

func (g *Guard) snapshotLocked() domain.Session {
	s := g.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Token is the bearer token of an authenticated session, or empty.
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.session.Authenticated() {
		return ""
	}
	return g.session.Token
}

// Resolved reports whether the first check has completed and no check is in progress.
func (g *Guard) Resolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.resolved && g.session.Status != domain.StatusVerifying
}

// Changed returns a channel that is closed on the next session change.
func (g *Guard) Changed() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.changed
}

func (g *Guard) notifyLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}
