// Package identity talks to the identity backend's REST API (Identity
// Toolkit v1) for password, federated and account-management calls.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const requestURI = "http://localhost"

type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignInWithIdp(ctx context.Context, providerID, idToken string) (*Session, error)
	FetchSignInMethods(ctx context.Context, email string) ([]string, error)
	SendPasswordReset(ctx context.Context, email string) error
	Delete(ctx context.Context, idToken string) error
	Lookup(ctx context.Context, idToken string) (*Account, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// Session is the result of a successful sign-in call.
type Session struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

// TTL returns the lifetime of the ID token.
func (s *Session) TTL() time.Duration {
	secs, err := strconv.Atoi(s.ExpiresIn)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type Account struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	Disabled    bool   `json:"disabled"`
}

type httpClient struct {
	baseURL  string
	tokenURL string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient returns a client for the account endpoints under baseURL and
// the token endpoint under tokenURL.
func NewHTTPClient(baseURL, tokenURL, apiKey string, timeout time.Duration) Client {
	return &httpClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: strings.TrimRight(tokenURL, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

func (c *httpClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var resp Session
	if err := c.post(ctx, "accounts:signInWithPassword", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &resp); err != nil {
		return nil, err
	}
	if resp.ProviderID == "" {
		resp.ProviderID = "password"
	}
	return &resp, nil
}

func (c *httpClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var resp Session
	if err := c.post(ctx, "accounts:signUp", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &resp); err != nil {
		return nil, err
	}
	if resp.ProviderID == "" {
		resp.ProviderID = "password"
	}
	return &resp, nil
}

func (c *httpClient) SignInWithIdp(ctx context.Context, providerID, idToken string) (*Session, error) {
	payload := map[string]interface{}{
		"postBody":            url.Values{"id_token": {idToken}, "providerId": {providerID}}.Encode(),
		"requestUri":          requestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}
	var resp struct {
		Session
		ErrorMessage string `json:"errorMessage"`
	}
	if err := c.post(ctx, "accounts:signInWithIdp", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, newAPIError(http.StatusOK, resp.ErrorMessage)
	}
	if resp.ProviderID == "" {
		resp.ProviderID = providerID
	}
	return &resp.Session, nil
}

func (c *httpClient) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	payload := map[string]string{"identifier": email, "continueUri": requestURI}
	var resp struct {
		Registered    bool     `json:"registered"`
		SigninMethods []string `json:"signinMethods"`
		AllProviders  []string `json:"allProviders"`
	}
	if err := c.post(ctx, "accounts:createAuthUri", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.SigninMethods) > 0 {
		return resp.SigninMethods, nil
	}
	return resp.AllProviders, nil
}

func (c *httpClient) SendPasswordReset(ctx context.Context, email string) error {
	payload := map[string]string{"requestType": "PASSWORD_RESET", "email": email}
	return c.post(ctx, "accounts:sendOobCode", payload, nil)
}

func (c *httpClient) Delete(ctx context.Context, idToken string) error {
	return c.post(ctx, "accounts:delete", map[string]string{"idToken": idToken}, nil)
}

func (c *httpClient) Lookup(ctx context.Context, idToken string) (*Account, error) {
	var resp struct {
		Users []Account `json:"users"`
	}
	if err := c.post(ctx, "accounts:lookup", map[string]string{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &APIError{Status: http.StatusOK, Code: "USER_NOT_FOUND", Kind: ErrUserNotFound}
	}
	return &resp.Users[0], nil
}

func (c *httpClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"grant_type": "refresh_token", "refresh_token": refreshToken}
	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := c.do(ctx, c.tokenURL+"/token", payload, &resp); err != nil {
		return nil, err
	}
	return &Session{LocalID: resp.UserID, IDToken: resp.IDToken, RefreshToken: resp.RefreshToken, ExpiresIn: resp.ExpiresIn}, nil
}

func (c *httpClient) post(ctx context.Context, method string, payload interface{}, out interface{}) error {
	return c.do(ctx, c.baseURL+"/"+method, payload, out)
}

// do performs one call. Failures are returned as-is; retrying is left to
// the caller.
func (c *httpClient) do(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint = fmt.Sprintf("%s?key=%s", endpoint, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil || errResp.Error.Message == "" {
			return &APIError{Status: res.StatusCode, Code: http.StatusText(res.StatusCode)}
		}
		return newAPIError(res.StatusCode, errResp.Error.Message)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode identity response: %w", err)
		}
	}
	return nil
}
