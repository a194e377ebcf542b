package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	"github.com/lifeleveling/lifeleveling/internal/usecase"
	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

type mockState struct {
	state       domain.AuthState
	signInFn    func(email, password string) error
	signUpFn    func(email, password string) error
	googleFn    func(idToken string) error
	googleCode  string
	federated   bool
	resetEmails []string
	deleteErr   error
}

func (m *mockState) State() domain.AuthState { return m.state }

func (m *mockState) SignIn(_ context.Context, email, password string) error {
	return m.signInFn(email, password)
}

func (m *mockState) SignUp(_ context.Context, email, password string) error {
	return m.signUpFn(email, password)
}

func (m *mockState) SignInWithGoogle(_ context.Context, idToken string) error {
	return m.googleFn(idToken)
}

func (m *mockState) SignInWithGoogleCode(_ context.Context, code string) error {
	m.googleCode = code
	m.state = domain.AuthState{User: &domain.Identity{UID: "g1", Provider: domain.ProviderGoogle}}
	return nil
}

func (m *mockState) SignOut(_ context.Context, federated bool) error {
	m.federated = federated
	return nil
}

func (m *mockState) SendPasswordReset(_ context.Context, email string) error {
	m.resetEmails = append(m.resetEmails, email)
	return nil
}

func (m *mockState) DeleteAccount(context.Context) error { return m.deleteErr }

type mockLookup struct {
	methods []string
	urlErr  error
}

func (m mockLookup) FetchSignInMethods(context.Context, string) ([]string, error) {
	return m.methods, nil
}

func (m mockLookup) GoogleAuthURL(state string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "https://accounts.example/o/oauth2/auth?state=" + state, nil
}

func doJSON(method, target string, body interface{}, h echo.HandlerFunc, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	_ = h(c)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) res.ErrorResponse {
	t.Helper()
	var errResp res.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return errResp
}

func TestSignInSuccess(t *testing.T) {
	state := &mockState{}
	state.signInFn = func(email, password string) error {
		if email != "user@example.com" || password != "secret" {
			t.Fatalf("unexpected credentials %s/%s", email, password)
		}
		state.state = domain.AuthState{User: &domain.Identity{UID: "u1", Email: email}}
		return nil
	}
	h := NewAuthHandler(state, mockLookup{})

	rec := doJSON(http.MethodPost, "/auth/signin", credentialsRequest{Email: "user@example.com", Password: "secret"}, h.SignIn)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data domain.AuthState `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.User == nil || body.Data.User.UID != "u1" {
		t.Fatalf("unexpected state: %s", rec.Body.String())
	}
}

func TestSignInBadPayload(t *testing.T) {
	h := NewAuthHandler(&mockState{}, mockLookup{})
	rec := doJSON(http.MethodPost, "/auth/signin", credentialsRequest{Email: "user@example.com"}, h.SignIn)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSignUpGoogleOnlyConflict(t *testing.T) {
	state := &mockState{signUpFn: func(string, string) error {
		return errors.Join(errors.New("sign up"), usecase.ErrRegisteredWithGoogle)
	}}
	h := NewAuthHandler(state, mockLookup{})

	rec := doJSON(http.MethodPost, "/auth/signup", credentialsRequest{Email: "g@example.com", Password: "pw123456"}, h.SignUp)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	errResp := decodeError(t, rec)
	if errResp.Error.Code != "signup_failed" || errResp.Error.Message != usecase.MsgRegisteredWithGoogle {
		t.Fatalf("unexpected error: %+v", errResp.Error)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	state := &mockState{signInFn: func(string, string) error {
		return &identity.APIError{Status: 400, Code: "INVALID_PASSWORD", Kind: identity.ErrInvalidCredentials}
	}}
	h := NewAuthHandler(state, mockLookup{})

	rec := doJSON(http.MethodPost, "/auth/signin", credentialsRequest{Email: "a@example.com", Password: "x"}, h.SignIn)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Error.Message; msg != usecase.MsgInvalidCredentials {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestGoogleStartAndCallback(t *testing.T) {
	state := &mockState{}
	h := NewAuthHandler(state, mockLookup{})

	rec := doJSON(http.MethodGet, "/auth/google/start", nil, h.GoogleStart)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var start struct {
		Data map[string]string `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &start)
	oauthState := start.Data["state"]
	if oauthState == "" {
		t.Fatalf("missing state: %s", rec.Body.String())
	}

	q := url.Values{"code": {"c0de"}, "state": {oauthState}}
	rec = doJSON(http.MethodGet, "/auth/oauth/google/callback?"+q.Encode(), nil, h.GoogleCallback)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state.googleCode != "c0de" {
		t.Fatalf("code not forwarded: %q", state.googleCode)
	}

	rec = doJSON(http.MethodGet, "/auth/oauth/google/callback?"+q.Encode(), nil, h.GoogleCallback)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("state must be single use, got %d", rec.Code)
	}
}

func TestGoogleCallbackExpiredState(t *testing.T) {
	h := NewAuthHandler(&mockState{}, mockLookup{})
	h.pending["old"] = time.Now().Add(-time.Second)

	q := url.Values{"code": {"c"}, "state": {"old"}}
	rec := doJSON(http.MethodGet, "/auth/oauth/google/callback?"+q.Encode(), nil, h.GoogleCallback)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGoogleStartNotConfigured(t *testing.T) {
	h := NewAuthHandler(&mockState{}, mockLookup{urlErr: usecase.ErrGoogleNotConfigured})
	rec := doJSON(http.MethodGet, "/auth/google/start", nil, h.GoogleStart)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestSignOutFederated(t *testing.T) {
	state := &mockState{}
	h := NewAuthHandler(state, mockLookup{})
	rec := doJSON(http.MethodPost, "/auth/signout", signOutRequest{Federated: true}, h.SignOut)
	if rec.Code != http.StatusNoContent || !state.federated {
		t.Fatalf("unexpected result %d federated=%v", rec.Code, state.federated)
	}
}

func TestSignInMethods(t *testing.T) {
	h := NewAuthHandler(&mockState{}, mockLookup{methods: []string{"google.com"}})
	rec := doJSON(http.MethodGet, "/auth/methods?email=g%40example.com", nil, h.SignInMethods)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data map[string][]string `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data["methods"]) != 1 || body.Data["methods"][0] != "google.com" {
		t.Fatalf("unexpected methods: %s", rec.Body.String())
	}
}

func TestDeleteAccountWithoutSession(t *testing.T) {
	state := &mockState{deleteErr: &domain.PreconditionError{Op: "delete account", Err: domain.ErrNoIdentity}}
	h := NewAuthHandler(state, mockLookup{})
	rec := doJSON(http.MethodDelete, "/auth/account", nil, h.DeleteAccount)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Error.Message; msg != usecase.MsgNotSignedIn {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPasswordResetStart(t *testing.T) {
	state := &mockState{}
	h := NewAuthHandler(state, mockLookup{})
	rec := doJSON(http.MethodPost, "/auth/password/reset/start", passwordResetStartRequest{Email: "a@example.com"}, h.PasswordResetStart)
	if rec.Code != http.StatusAccepted || len(state.resetEmails) != 1 {
		t.Fatalf("unexpected result %d %v", rec.Code, state.resetEmails)
	}
}

type mockUsers struct {
	createFn func(fields domain.UserFields) (*domain.User, error)
	editErr  error
	fetched  map[string]*domain.User
}

func (m *mockUsers) Create(_ context.Context, fields domain.UserFields) (*domain.User, error) {
	return m.createFn(fields)
}

func (m *mockUsers) Edit(context.Context, domain.UserFields) error { return m.editErr }

func (m *mockUsers) Fetch(_ context.Context, uid string) (*domain.User, error) {
	if u, ok := m.fetched[uid]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockUsers) Ensure(context.Context, *domain.Identity) error { return nil }

func (m *mockUsers) SaveToken(context.Context, string) error { return nil }

func TestCreateUserUnauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUsers{createFn: func(domain.UserFields) (*domain.User, error) {
		return nil, domain.ErrNotAuthenticated
	}})
	rec := doJSON(http.MethodPost, "/users", map[string]string{"displayName": "Ada"}, h.Create)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateUser(t *testing.T) {
	h := NewUserHandler(&mockUsers{createFn: func(fields domain.UserFields) (*domain.User, error) {
		name, _ := fields[domain.FieldDisplayName].(string)
		return &domain.User{UserID: "u1", DisplayName: name}, nil
	}})
	rec := doJSON(http.MethodPost, "/users", map[string]string{"displayName": "Ada"}, h.Create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body struct {
		Data domain.User `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.UserID != "u1" || body.Data.DisplayName != "Ada" {
		t.Fatalf("unexpected user: %+v", body.Data)
	}
}

func TestFetchUserNotFound(t *testing.T) {
	h := NewUserHandler(&mockUsers{})
	rec := doJSON(http.MethodGet, "/users/nope", nil, h.Fetch, "id", "nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEditMeNothingToUpdate(t *testing.T) {
	h := NewUserHandler(&mockUsers{editErr: usecase.ErrNothingToUpdate})
	rec := doJSON(http.MethodPatch, "/users/me", map[string]string{"userId": "x"}, h.EditMe)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type mockScheduler struct {
	scheduled []domain.Reminder
	cancelled []string
}

func (m *mockScheduler) Schedule(r domain.Reminder) error {
	if r.DueAt == nil {
		return &domain.PreconditionError{Op: "schedule reminder", Err: domain.ErrMissingDueDate}
	}
	m.scheduled = append(m.scheduled, r)
	return nil
}

func (m *mockScheduler) Cancel(id string) { m.cancelled = append(m.cancelled, id) }

func TestScheduleReminder(t *testing.T) {
	s := &mockScheduler{}
	h := NewReminderHandler(s)
	due := time.Date(2026, 5, 1, 7, 30, 0, 0, time.UTC)

	rec := doJSON(http.MethodPost, "/reminders", domain.Reminder{ID: "abc", Title: "Run", DueAt: &due}, h.Schedule)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var body struct {
		Data struct {
			RequestCode int32 `json:"request_code"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.RequestCode != 96354 {
		t.Fatalf("unexpected request code %d", body.Data.RequestCode)
	}
	if len(s.scheduled) != 1 || !s.scheduled[0].DueAt.Equal(due) {
		t.Fatalf("unexpected schedule: %+v", s.scheduled)
	}
}

func TestScheduleReminderWithoutDueDate(t *testing.T) {
	h := NewReminderHandler(&mockScheduler{})
	rec := doJSON(http.MethodPost, "/reminders", domain.Reminder{ID: "abc"}, h.Schedule)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCancelReminder(t *testing.T) {
	s := &mockScheduler{}
	h := NewReminderHandler(s)
	rec := doJSON(http.MethodDelete, "/reminders/abc", nil, h.Cancel, "id", "abc")
	if rec.Code != http.StatusNoContent || len(s.cancelled) != 1 || s.cancelled[0] != "abc" {
		t.Fatalf("unexpected result %d %v", rec.Code, s.cancelled)
	}
}

type mockReceiver struct {
	messages []usecase.RemoteMessage
	tokens   []string
}

func (m *mockReceiver) OnMessageReceived(_ context.Context, msg usecase.RemoteMessage) {
	m.messages = append(m.messages, msg)
}

func (m *mockReceiver) OnNewToken(_ context.Context, token string) {
	m.tokens = append(m.tokens, token)
}

func TestPushDeliverAndToken(t *testing.T) {
	r := &mockReceiver{}
	h := NewPushHandler(r)

	rec := doJSON(http.MethodPost, "/push/messages", usecase.RemoteMessage{MessageID: "m1", Notification: &usecase.RemoteNotification{Body: "hi"}}, h.Deliver)
	if rec.Code != http.StatusAccepted || len(r.messages) != 1 || r.messages[0].Notification.Body != "hi" {
		t.Fatalf("unexpected deliver result %d %+v", rec.Code, r.messages)
	}

	rec = doJSON(http.MethodPost, "/push/token", tokenRequest{}, h.NewToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty token, got %d", rec.Code)
	}
	rec = doJSON(http.MethodPost, "/push/token", tokenRequest{Token: "tok"}, h.NewToken)
	if rec.Code != http.StatusAccepted || len(r.tokens) != 1 {
		t.Fatalf("unexpected token result %d %v", rec.Code, r.tokens)
	}
}
