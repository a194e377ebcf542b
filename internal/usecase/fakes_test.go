package usecase

import (
	"context"
	"sync"

	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	"github.com/lifeleveling/lifeleveling/internal/alarm"
	"github.com/lifeleveling/lifeleveling/internal/domain"
)

type fakeIDP struct {
	mu    sync.Mutex
	calls []string

	signInFn  func(email, password string) (*identity.Session, error)
	signUpFn  func(email, password string) (*identity.Session, error)
	idpFn     func(providerID, idToken string) (*identity.Session, error)
	methods   []string
	deleteErr error
	lookupFn  func(idToken string) (*identity.Account, error)
	refreshFn func(refreshToken string) (*identity.Session, error)
}

func (f *fakeIDP) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeIDP) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIDP) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.record("signIn")
	return f.signInFn(email, password)
}

func (f *fakeIDP) SignUp(_ context.Context, email, password string) (*identity.Session, error) {
	f.record("signUp")
	return f.signUpFn(email, password)
}

func (f *fakeIDP) SignInWithIdp(_ context.Context, providerID, idToken string) (*identity.Session, error) {
	f.record("signInWithIdp")
	return f.idpFn(providerID, idToken)
}

func (f *fakeIDP) FetchSignInMethods(_ context.Context, _ string) ([]string, error) {
	f.record("methods")
	return f.methods, nil
}

func (f *fakeIDP) SendPasswordReset(_ context.Context, _ string) error {
	f.record("reset")
	return nil
}

func (f *fakeIDP) Delete(_ context.Context, _ string) error {
	f.record("delete")
	return f.deleteErr
}

func (f *fakeIDP) Lookup(_ context.Context, idToken string) (*identity.Account, error) {
	f.record("lookup")
	if f.lookupFn == nil {
		return &identity.Account{}, nil
	}
	return f.lookupFn(idToken)
}

func (f *fakeIDP) Refresh(_ context.Context, refreshToken string) (*identity.Session, error) {
	f.record("refresh")
	return f.refreshFn(refreshToken)
}

func session(uid, email string) *identity.Session {
	return &identity.Session{LocalID: uid, Email: email, IDToken: "id-" + uid, RefreshToken: "rt-" + uid, ExpiresIn: "3600"}
}

type memUsers struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	calls     int
	deleteErr error
	upsertErr error
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*domain.User{}} }

func (r *memUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUsers) Upsert(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	cp := *u
	if old, ok := r.users[u.UserID]; ok {
		cp.CreatedAt = old.CreatedAt
	}
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUsers) Update(_ context.Context, uid string, fields domain.UserFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	u, ok := r.users[uid]
	if !ok {
		return domain.ErrNotFound
	}
	if v, ok := fields[domain.FieldDisplayName].(string); ok {
		u.DisplayName = v
	}
	if v, ok := fields[domain.FieldEmail].(string); ok {
		u.Email = v
	}
	if v, ok := fields[domain.FieldPhotoURL].(string); ok {
		u.PhotoURL = v
	}
	return nil
}

func (r *memUsers) FindByID(_ context.Context, uid string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	u, ok := r.users[uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.users, uid)
	return nil
}

func (r *memUsers) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.PushToken
	calls  int
}

func newMemTokens() *memTokens { return &memTokens{tokens: map[string]domain.PushToken{}} }

func (r *memTokens) Upsert(_ context.Context, t *domain.PushToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.tokens[t.UserID] = *t
	return nil
}

func (r *memTokens) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	delete(r.tokens, uid)
	return nil
}

func (r *memTokens) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuthLog
	err     error
}

func (r *memAudit) Append(_ context.Context, e *domain.AuthLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memAudit) Entries() []domain.AuthLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthLog(nil), r.entries...)
}

type recordingRenderer struct {
	mu   sync.Mutex
	seen []domain.Notification
}

func (r *recordingRenderer) Render(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return nil
}

func (r *recordingRenderer) Seen() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.seen...)
}

type fakeAlarms struct {
	pending map[int32]alarm.Alarm
}

func newFakeAlarms() *fakeAlarms { return &fakeAlarms{pending: map[int32]alarm.Alarm{}} }

func (f *fakeAlarms) SetExactAndAllowWhileIdle(a alarm.Alarm) { f.pending[a.RequestCode] = a }

func (f *fakeAlarms) Cancel(code int32) bool {
	_, ok := f.pending[code]
	delete(f.pending, code)
	return ok
}

type staticSession struct{ user *domain.Identity }

func (s staticSession) CurrentUser() *domain.Identity { return s.user }
