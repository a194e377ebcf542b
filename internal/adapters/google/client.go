// Package google obtains Google ID tokens for federated sign-in and revokes
// them on federated sign-out.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const defaultRevokeURL = "https://oauth2.googleapis.com/revoke"

var ErrNoIDToken = errors.New("google: token response carries no id_token")

type Client interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Revoke(ctx context.Context, token string) error
}

type Token struct {
	IDToken     string
	AccessToken string
}

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and RevokeURL default to Google's production endpoints.
	Endpoint  oauth2.Endpoint
	RevokeURL string
	HTTP      *http.Client
}

type oauthClient struct {
	cfg       *oauth2.Config
	revokeURL string
	http      *http.Client
}

func NewClient(opts Options) Client {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = googleoauth.Endpoint
	}
	revokeURL := opts.RevokeURL
	if revokeURL == "" {
		revokeURL = defaultRevokeURL
	}
	hc := opts.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	return &oauthClient{
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		revokeURL: revokeURL,
		http:      hc,
	}
}

func (c *oauthClient) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (c *oauthClient) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, ErrNoIDToken
	}
	return &Token{IDToken: idToken, AccessToken: tok.AccessToken}, nil
}

func (c *oauthClient) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("google revoke: status %d", res.StatusCode)
	}
	return nil
}
