package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/adapters/identity"
	"github.com/lifeleveling/lifeleveling/internal/domain"
	"github.com/lifeleveling/lifeleveling/internal/usecase"
	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

const oauthStateTTL = 10 * time.Minute

// AuthStateHolder is the state holder driven by the auth endpoints.
type AuthStateHolder interface {
	State() domain.AuthState
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignInWithGoogle(ctx context.Context, googleIDToken string) error
	SignInWithGoogleCode(ctx context.Context, code string) error
	SignOut(ctx context.Context, federated bool) error
	SendPasswordReset(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context) error
}

// SignInLookup answers questions that do not change the session.
type SignInLookup interface {
	FetchSignInMethods(ctx context.Context, email string) ([]string, error)
	GoogleAuthURL(state string) (string, error)
}

type AuthHandler struct {
	state  AuthStateHolder
	lookup SignInLookup
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewAuthHandler(state AuthStateHolder, lookup SignInLookup) *AuthHandler {
	return &AuthHandler{state: state, lookup: lookup, now: time.Now, pending: map[string]time.Time{}}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	IDToken string `json:"id_token"`
}

type signOutRequest struct {
	Federated bool `json:"federated"`
}

type passwordResetStartRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) State(c echo.Context) error {
	return res.JSON(c, http.StatusOK, h.state.State())
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	req := new(credentialsRequest)
	if err := c.Bind(req); err != nil || req.Email == "" || req.Password == "" {
		return badRequest(c)
	}
	if err := h.state.SignIn(c.Request().Context(), req.Email, req.Password); err != nil {
		return authError(c, "signin_failed", err)
	}
	return res.JSON(c, http.StatusOK, h.state.State())
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	req := new(credentialsRequest)
	if err := c.Bind(req); err != nil || req.Email == "" || req.Password == "" {
		return badRequest(c)
	}
	if err := h.state.SignUp(c.Request().Context(), req.Email, req.Password); err != nil {
		return authError(c, "signup_failed", err)
	}
	return res.JSON(c, http.StatusCreated, h.state.State())
}

func (h *AuthHandler) SignInWithGoogle(c echo.Context) error {
	req := new(googleRequest)
	if err := c.Bind(req); err != nil || req.IDToken == "" {
		return badRequest(c)
	}
	if err := h.state.SignInWithGoogle(c.Request().Context(), req.IDToken); err != nil {
		return authError(c, "google_signin_failed", err)
	}
	return res.JSON(c, http.StatusOK, h.state.State())
}

// GoogleStart returns the consent URL; the state value is single-use.
func (h *AuthHandler) GoogleStart(c echo.Context) error {
	state := uuid.NewString()
	url, err := h.lookup.GoogleAuthURL(state)
	if err != nil {
		return authError(c, "google_unavailable", err)
	}
	h.mu.Lock()
	h.expireLocked()
	h.pending[state] = h.now().Add(oauthStateTTL)
	h.mu.Unlock()
	return res.JSON(c, http.StatusOK, map[string]string{"url": url, "state": state})
}

func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		return res.ErrorJSON(c, http.StatusUnauthorized, "google_denied", reason, nil)
	}
	code := c.QueryParam("code")
	if code == "" || !h.consumeState(c.QueryParam("state")) {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid oauth state", nil)
	}
	if err := h.state.SignInWithGoogleCode(c.Request().Context(), code); err != nil {
		return authError(c, "google_signin_failed", err)
	}
	return res.JSON(c, http.StatusOK, h.state.State())
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	req := new(signOutRequest)
	if err := c.Bind(req); err != nil {
		return badRequest(c)
	}
	if err := h.state.SignOut(c.Request().Context(), req.Federated); err != nil {
		return authError(c, "signout_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) SignInMethods(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return badRequest(c)
	}
	methods, err := h.lookup.FetchSignInMethods(c.Request().Context(), email)
	if err != nil {
		return authError(c, "lookup_failed", err)
	}
	if methods == nil {
		methods = []string{}
	}
	return res.JSON(c, http.StatusOK, map[string][]string{"methods": methods})
}

func (h *AuthHandler) PasswordResetStart(c echo.Context) error {
	req := new(passwordResetStartRequest)
	if err := c.Bind(req); err != nil || req.Email == "" {
		return badRequest(c)
	}
	if err := h.state.SendPasswordReset(c.Request().Context(), req.Email); err != nil {
		return authError(c, "password_reset_failed", err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "password reset email sent"})
}

func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	if err := h.state.DeleteAccount(c.Request().Context()); err != nil {
		return authError(c, "delete_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) consumeState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	exp, ok := h.pending[state]
	delete(h.pending, state)
	return ok && h.now().Before(exp)
}

func (h *AuthHandler) expireLocked() {
	now := h.now()
	for s, exp := range h.pending {
		if !now.Before(exp) {
			delete(h.pending, s)
		}
	}
}

// authError renders err with the message the state holder shows the user.
func authError(c echo.Context, code string, err error) error {
	var pre *domain.PreconditionError
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, usecase.ErrRegisteredWithGoogle), errors.Is(err, usecase.ErrEmailInUse):
		status = http.StatusConflict
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrUserDisabled), errors.As(err, &pre):
		status = http.StatusUnauthorized
	case errors.Is(err, usecase.ErrGoogleNotConfigured):
		status = http.StatusNotImplemented
	}
	return res.ErrorJSON(c, status, code, usecase.MessageFor(err), nil)
}

func badRequest(c echo.Context) error {
	return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", nil)
}
