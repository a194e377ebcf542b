package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lifeleveling/lifeleveling/internal/adapters/google"
	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	"github.com/lifeleveling/lifeleveling/internal/idtoken"
	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tagAuth = "AuthService"

var (
	ErrRegisteredWithGoogle = errors.New("email is registered with google")
	ErrEmailInUse           = errors.New("email already in use")
	ErrGoogleNotConfigured  = errors.New("google sign-in not configured")
)

// refreshSkew renews ID tokens this long before they expire.
const refreshSkew = 5 * time.Minute

// AuthService wraps the identity backend and owns the process-wide session.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password string) (*domain.Identity, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*domain.Identity, error)
	SignInWithGoogleCode(ctx context.Context, code string) (*domain.Identity, error)
	GoogleAuthURL(state string) (string, error)
	SignOut(ctx context.Context, federated bool) error
	FetchSignInMethods(ctx context.Context, email string) ([]string, error)
	SendPasswordReset(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context) error
	// Reload re-validates the session against the backend and clears it when
	// the account is gone.
	Reload(ctx context.Context) error
	CurrentUser() *domain.Identity
	AddStateListener(fn func(*domain.Identity)) (remove func())
}

type authService struct {
	logger pkglog.Logger
	idp    identity.Client
	google google.Client
	users  domain.UserRepository
	tokens domain.PushTokenRepository
	now    func() time.Time

	// notifyMu serializes session writes with their listener delivery.
	notifyMu sync.Mutex

	mu          sync.Mutex
	current     *domain.Identity
	googleToken string
	listeners   map[int]func(*domain.Identity)
	nextID      int
}

// NewAuthService wires the identity client. googleClient may be nil when
// federated sign-in via authorization code is not configured.
func NewAuthService(logger pkglog.Logger, idp identity.Client, googleClient google.Client, users domain.UserRepository, tokens domain.PushTokenRepository) AuthService {
	return &authService{
		logger:    logger,
		idp:       idp,
		google:    googleClient,
		users:     users,
		tokens:    tokens,
		now:       time.Now,
		listeners: map[int]func(*domain.Identity){},
	}
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	sess, err := s.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) && s.onlyGoogle(ctx, email) {
			return nil, fmt.Errorf("sign in: %w", ErrRegisteredWithGoogle)
		}
		s.logger.Warn(tagAuth, "sign in failed", err, pkglog.Fields{"email": email})
		return nil, err
	}
	user := s.establish(sess, domain.ProviderPassword, "")
	s.logger.Info(tagAuth, "signed in", pkglog.Fields{"uid": user.UID})
	return user, nil
}

// SignUp creates the account; the returned session is already signed in.
func (s *authService) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	sess, err := s.idp.SignUp(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			if s.onlyGoogle(ctx, email) {
				return nil, fmt.Errorf("sign up: %w", ErrRegisteredWithGoogle)
			}
			return nil, fmt.Errorf("sign up: %w", ErrEmailInUse)
		}
		s.logger.Warn(tagAuth, "sign up failed", err, pkglog.Fields{"email": email})
		return nil, err
	}
	user := s.establish(sess, domain.ProviderPassword, "")
	s.logger.Info(tagAuth, "account created", pkglog.Fields{"uid": user.UID})
	return user, nil
}

func (s *authService) SignInWithGoogle(ctx context.Context, googleIDToken string) (*domain.Identity, error) {
	return s.signInWithGoogle(ctx, googleIDToken, "")
}

func (s *authService) SignInWithGoogleCode(ctx context.Context, code string) (*domain.Identity, error) {
	if s.google == nil {
		return nil, ErrGoogleNotConfigured
	}
	tok, err := s.google.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn(tagAuth, "google code exchange failed", err)
		return nil, err
	}
	return s.signInWithGoogle(ctx, tok.IDToken, tok.AccessToken)
}

func (s *authService) signInWithGoogle(ctx context.Context, googleIDToken, accessToken string) (*domain.Identity, error) {
	sess, err := s.idp.SignInWithIdp(ctx, domain.ProviderGoogle, googleIDToken)
	if err != nil {
		s.logger.Warn(tagAuth, "google sign in failed", err)
		return nil, err
	}
	user := s.establish(sess, domain.ProviderGoogle, accessToken)
	s.logger.Info(tagAuth, "signed in with google", pkglog.Fields{"uid": user.UID})
	return user, nil
}

func (s *authService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleNotConfigured
	}
	return s.google.AuthCodeURL(state), nil
}

func (s *authService) SignOut(ctx context.Context, federated bool) error {
	s.mu.Lock()
	prev := s.current
	googleToken := s.googleToken
	s.googleToken = ""
	s.mu.Unlock()

	s.setSession(nil)
	if federated && googleToken != "" && s.google != nil {
		if err := s.google.Revoke(ctx, googleToken); err != nil {
			s.logger.Warn(tagAuth, "google sign out failed", err)
		}
	}
	if prev != nil {
		s.logger.Info(tagAuth, "signed out", pkglog.Fields{"uid": prev.UID, "federated": federated})
	}
	return nil
}

func (s *authService) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	return s.idp.FetchSignInMethods(ctx, normalizeEmail(email))
}

func (s *authService) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.idp.SendPasswordReset(ctx, email); err != nil {
		s.logger.Warn(tagAuth, "password reset failed", err, pkglog.Fields{"email": email})
		return err
	}
	s.logger.Info(tagAuth, "password reset email sent", pkglog.Fields{"email": email})
	return nil
}

// DeleteAccount deletes the identity account, then the user record and push
// token bound to it. Without a signed-in identity it fails before any I/O.
// When the identity delete fails, the record and token are left untouched.
func (s *authService) DeleteAccount(ctx context.Context) error {
	cur := s.CurrentUser()
	if cur == nil || cur.UID == "" {
		return &domain.PreconditionError{Op: "delete account", Err: domain.ErrNoIdentity}
	}
	if err := s.idp.Delete(ctx, cur.IDToken); err != nil {
		s.logger.Error(tagAuth, "delete identity failed", err, pkglog.Fields{"uid": cur.UID})
		return fmt.Errorf("delete identity: %w", err)
	}
	if err := s.users.Delete(ctx, cur.UID); err != nil {
		s.logger.Error(tagAuth, "delete user record failed", err, pkglog.Fields{"uid": cur.UID})
	}
	if err := s.tokens.Delete(ctx, cur.UID); err != nil {
		s.logger.Warn(tagAuth, "delete push token failed", err, pkglog.Fields{"uid": cur.UID})
	}
	s.setSession(nil)
	s.logger.Info(tagAuth, "account deleted", pkglog.Fields{"uid": cur.UID})
	return nil
}

func (s *authService) Reload(ctx context.Context) error {
	cur := s.CurrentUser()
	if cur == nil {
		return nil
	}
	if !cur.ExpiresAt.IsZero() && s.now().Add(refreshSkew).After(cur.ExpiresAt) {
		sess, err := s.idp.Refresh(ctx, cur.RefreshToken)
		if err != nil {
			return s.invalidate(cur, err)
		}
		refreshed := *cur
		refreshed.IDToken = sess.IDToken
		refreshed.RefreshToken = sess.RefreshToken
		refreshed.ExpiresAt = s.expiry(sess)
		s.replaceTokens(cur.UID, &refreshed)
		cur = &refreshed
	}
	acct, err := s.idp.Lookup(ctx, cur.IDToken)
	if err != nil {
		return s.invalidate(cur, err)
	}
	if acct.Disabled {
		return s.invalidate(cur, identity.ErrUserDisabled)
	}
	return nil
}

// invalidate clears the session when err says the account or session is
// gone; other errors leave the session untouched.
func (s *authService) invalidate(cur *domain.Identity, err error) error {
	if errors.Is(err, identity.ErrUserNotFound) || errors.Is(err, identity.ErrUserDisabled) || errors.Is(err, identity.ErrSessionInvalid) {
		s.logger.Warn(tagAuth, "session revoked by identity backend", err, pkglog.Fields{"uid": cur.UID})
		s.setSession(nil)
		return nil
	}
	s.logger.Warn(tagAuth, "session check failed", err, pkglog.Fields{"uid": cur.UID})
	return err
}

func (s *authService) CurrentUser() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

func (s *authService) AddStateListener(fn func(*domain.Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *authService) establish(sess *identity.Session, fallbackProvider, googleToken string) *domain.Identity {
	user := &domain.Identity{
		UID:          sess.LocalID,
		Email:        sess.Email,
		DisplayName:  sess.DisplayName,
		PhotoURL:     sess.PhotoURL,
		Provider:     sess.ProviderID,
		IDToken:      sess.IDToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    s.expiry(sess),
	}
	if claims, err := idtoken.Parse(sess.IDToken); err == nil {
		if user.UID == "" {
			user.UID = claims.UID
		}
		if claims.Provider != "" {
			user.Provider = claims.Provider
		}
		if user.DisplayName == "" {
			user.DisplayName = claims.Name
		}
		if user.PhotoURL == "" {
			user.PhotoURL = claims.Picture
		}
	}
	if user.Provider == "" {
		user.Provider = fallbackProvider
	}
	s.mu.Lock()
	s.googleToken = googleToken
	s.mu.Unlock()
	s.setSession(user)
	cp := *user
	return &cp
}

func (s *authService) expiry(sess *identity.Session) time.Time {
	if claims, err := idtoken.Parse(sess.IDToken); err == nil && !claims.ExpiresAt.IsZero() {
		return claims.ExpiresAt
	}
	if ttl := sess.TTL(); ttl > 0 {
		return s.now().Add(ttl)
	}
	return time.Time{}
}

// replaceTokens swaps refreshed tokens in without notifying listeners; the
// signed-in user did not change.
func (s *authService) replaceTokens(uid string, refreshed *domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.UID == uid {
		s.current = refreshed
	}
}

// setSession stores user and tells every listener, in the order the
// transitions happened.
func (s *authService) setSession(user *domain.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = user
	fns := make([]func(*domain.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		var cp *domain.Identity
		if user != nil {
			u := *user
			cp = &u
		}
		fn(cp)
	}
}

// onlyGoogle reports whether the email's sole sign-in method is Google.
func (s *authService) onlyGoogle(ctx context.Context, email string) bool {
	methods, err := s.idp.FetchSignInMethods(ctx, email)
	if err != nil {
		s.logger.Warn(tagAuth, "fetch sign-in methods failed", err, pkglog.Fields{"email": email})
		return false
	}
	return len(methods) == 1 && methods[0] == domain.ProviderGoogle
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
