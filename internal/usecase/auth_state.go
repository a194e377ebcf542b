package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagState = "AuthState"

// Audit-log sources, one per sign-in trigger.
const (
	SourceEmailSignIn  = "email_sign_in"
	SourceEmailSignUp  = "email_sign_up"
	SourceGoogleSignIn = "google_sign_in"
)

// User-facing error messages.
const (
	MsgRegisteredWithGoogle = "This email is registered with Google. Please use Google login."
	MsgEmailInUse           = "This email address is already in use."
	MsgUserNotFound         = "No account found with this email."
	MsgInvalidCredentials   = "Incorrect email or password."
	MsgUserDisabled         = "This account has been disabled."
	MsgNotSignedIn          = "You need to be signed in to do that."
	MsgAuthFailed           = "Authentication failed: "
	MsgUnexpected           = "An unexpected error occurred. Please try again."
)

type AuthStateOptions struct {
	// Workers run post-login bookkeeping; 1 keeps it sequential.
	Workers int
	// Timeout bounds one bookkeeping run.
	Timeout time.Duration
}

// AuthState holds the observable auth UI state. Every mutation goes through
// a generation check: a state change reported by the identity backend bumps
// the generation, and an operation only applies its own completion if no
// newer change happened since it started.
type AuthState struct {
	logger pkglog.Logger
	auth   AuthService
	users  UserService
	audit  domain.AuthLogRepository
	opts   AuthStateOptions
	pool   *workerpool.WorkerPool
	now    func() time.Time

	mu        sync.Mutex
	state     domain.AuthState
	gen       uint64
	observers map[int]func(domain.AuthState)
	nextObs   int

	removeListener func()

	poolMu sync.Mutex
	closed bool
}

func NewAuthState(logger pkglog.Logger, auth AuthService, users UserService, audit domain.AuthLogRepository, opts AuthStateOptions) *AuthState {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	s := &AuthState{
		logger:    logger,
		auth:      auth,
		users:     users,
		audit:     audit,
		opts:      opts,
		pool:      workerpool.New(opts.Workers),
		now:       time.Now,
		state:     domain.AuthState{User: auth.CurrentUser()},
		observers: map[int]func(domain.AuthState){},
	}
	s.removeListener = auth.AddStateListener(s.onAuthStateChanged)
	return s
}

func (s *AuthState) State() domain.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe calls fn with every new state until the returned func is called.
func (s *AuthState) Subscribe(fn func(domain.AuthState)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *AuthState) SignIn(ctx context.Context, email, password string) error {
	return s.runSignIn(SourceEmailSignIn, func() (*domain.Identity, error) {
		return s.auth.SignIn(ctx, email, password)
	})
}

func (s *AuthState) SignUp(ctx context.Context, email, password string) error {
	return s.runSignIn(SourceEmailSignUp, func() (*domain.Identity, error) {
		return s.auth.SignUp(ctx, email, password)
	})
}

func (s *AuthState) SignInWithGoogle(ctx context.Context, googleIDToken string) error {
	return s.runSignIn(SourceGoogleSignIn, func() (*domain.Identity, error) {
		return s.auth.SignInWithGoogle(ctx, googleIDToken)
	})
}

func (s *AuthState) SignInWithGoogleCode(ctx context.Context, code string) error {
	return s.runSignIn(SourceGoogleSignIn, func() (*domain.Identity, error) {
		return s.auth.SignInWithGoogleCode(ctx, code)
	})
}

// SignOut clears the session; the resulting state arrives via the identity
// listener.
func (s *AuthState) SignOut(ctx context.Context, federated bool) error {
	return s.auth.SignOut(ctx, federated)
}

func (s *AuthState) SendPasswordReset(ctx context.Context, email string) error {
	return s.run(func() error { return s.auth.SendPasswordReset(ctx, email) })
}

func (s *AuthState) DeleteAccount(ctx context.Context) error {
	return s.run(func() error { return s.auth.DeleteAccount(ctx) })
}

// Close unsubscribes from the identity backend and lets queued bookkeeping
// finish. Outstanding calls are not aborted.
func (s *AuthState) Close() {
	if s.removeListener != nil {
		s.removeListener()
	}
	s.poolMu.Lock()
	s.closed = true
	s.poolMu.Unlock()
	s.pool.StopWait()
}

func (s *AuthState) submit(task func()) {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	if s.closed {
		s.logger.Warn(tagState, "bookkeeping dropped: state holder closed", nil)
		return
	}
	s.pool.Submit(task)
}

func (s *AuthState) runSignIn(source string, op func() (*domain.Identity, error)) error {
	gen := s.begin()
	user, err := op()
	if err != nil {
		s.fail(gen, err)
		return err
	}
	s.complete(gen, func(st *domain.AuthState) {
		st.User = user
		st.IsLoading = false
		st.Error = ""
	})
	s.submit(func() { s.bookkeeping(user, source) })
	return nil
}

func (s *AuthState) run(op func() error) error {
	gen := s.begin()
	if err := op(); err != nil {
		s.fail(gen, err)
		return err
	}
	s.complete(gen, func(st *domain.AuthState) {
		st.IsLoading = false
		st.Error = ""
	})
	return nil
}

func (s *AuthState) begin() uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.IsLoading = true
	s.state.Error = ""
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()
	publish(obs, snap)
	return gen
}

func (s *AuthState) fail(gen uint64, err error) {
	msg := MessageFor(err)
	s.logger.Warn(tagState, "auth operation failed", err, pkglog.Fields{"message": msg})
	s.complete(gen, func(st *domain.AuthState) {
		st.IsLoading = false
		st.Error = msg
	})
}

// complete applies mutate only when nothing changed the state since gen.
func (s *AuthState) complete(gen uint64, mutate func(*domain.AuthState)) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	mutate(&s.state)
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()
	publish(obs, snap)
}

func (s *AuthState) onAuthStateChanged(user *domain.Identity) {
	s.mu.Lock()
	s.gen++
	s.state = domain.AuthState{User: user}
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()
	publish(obs, snap)
}

func (s *AuthState) snapshotLocked() (domain.AuthState, []func(domain.AuthState)) {
	obs := make([]func(domain.AuthState), 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	return s.state, obs
}

func publish(obs []func(domain.AuthState), st domain.AuthState) {
	for _, fn := range obs {
		fn(st)
	}
}

// bookkeeping ensures the user record exists and appends one audit entry.
// Failures are logged and never reach the UI state.
func (s *AuthState) bookkeeping(user *domain.Identity, source string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	if err := s.users.Ensure(ctx, user); err != nil {
		s.logger.Warn(tagState, "ensure user record failed", err, pkglog.Fields{"uid": user.UID})
	}
	entry := &domain.AuthLog{
		TS:       s.now(),
		Source:   source,
		Provider: user.Provider,
		UID:      user.UID,
		Email:    user.Email,
		Name:     user.DisplayName,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn(tagState, "auth log write failed", err, pkglog.Fields{"uid": user.UID})
		return
	}
	s.logger.Debug(tagState, "auth log written", pkglog.Fields{"uid": user.UID, "source": source})
}

// MessageFor maps an auth failure to the message shown to the user.
func MessageFor(err error) string {
	var apiErr *identity.APIError
	var preErr *domain.PreconditionError
	switch {
	case errors.Is(err, ErrRegisteredWithGoogle):
		return MsgRegisteredWithGoogle
	case errors.Is(err, ErrEmailInUse):
		return MsgEmailInUse
	case errors.Is(err, identity.ErrUserNotFound):
		return MsgUserNotFound
	case errors.Is(err, identity.ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, identity.ErrUserDisabled):
		return MsgUserDisabled
	case errors.As(err, &preErr):
		return MsgNotSignedIn
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return MsgAuthFailed + apiErr.Message
		}
		return MsgAuthFailed + apiErr.Code
	default:
		return MsgUnexpected
	}
}
