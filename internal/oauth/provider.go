package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
	"github.com/slava-lu/auth-app-backend/internal/config"
	"github.com/slava-lu/auth-app-backend/internal/oauth/entity"
	userentity "github.com/slava-lu/auth-app-backend/internal/user/entity"
)

const (
	facebookTokenURL  = "https://graph.facebook.com/v18.0/oauth/access_token"
	facebookGraphURL  = "https://graph.facebook.com/v18.0"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"
	linkedInTokenURL  = "https://www.linkedin.com/oauth/v2/accessToken"
	linkedInRevokeURL = "https://api.linkedin.com/oauth/v2/revoke"
)

// Grant is what a provider returns for an authorization code.
type Grant struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// Provider is one supported social login.
type Provider interface {
	Name() string
	Exchange(ctx context.Context, code string) (*Grant, error)
	// KeepsTokens reports whether logout needs the stored user tokens.
	KeepsTokens() bool
	Revoke(ctx context.Context, providerUserID string, t entity.Tokens) error
}

type base struct {
	name      string
	conf      *oauth2.Config
	revokeURL string
	client    *http.Client
}

func newBase(name string, p config.Provider, tokenURL, revokeURL string, client *http.Client) base {
	if p.TokenURL != "" {
		tokenURL = p.TokenURL
	}
	if p.RevokeURL != "" {
		revokeURL = p.RevokeURL
	}
	return base{
		name: name,
		conf: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURI,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		revokeURL: revokeURL,
		client:    client,
	}
}

func (b base) Name() string { return b.name }

func (b base) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	tok, err := b.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, apperr.ErrProviderTokenMissing
		}
		return nil, fmt.Errorf("%s code exchange: %w", b.name, err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return nil, apperr.ErrProviderTokenMissing
	}
	return &Grant{IDToken: idToken, AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

func (b base) do(req *http.Request) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s revoke: %w", b.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s revoke: status %d", b.name, resp.StatusCode)
	}
	return nil
}

type facebook struct{ base }

func (facebook) KeepsTokens() bool { return false }

// Revoke removes the app's permissions using the app access token.
func (f facebook) Revoke(ctx context.Context, providerUserID string, _ entity.Tokens) error {
	q := url.Values{"access_token": {f.conf.ClientID + "|" + f.conf.ClientSecret}}
	u := strings.TrimRight(f.revokeURL, "/") + "/" + url.PathEscape(providerUserID) + "/permissions?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	return f.do(req)
}

type google struct{ base }

func (google) KeepsTokens() bool { return true }

func (g google) Revoke(ctx context.Context, _ string, t entity.Tokens) error {
	u := g.revokeURL + "?" + url.Values{"token": {t.Revocable()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	return g.do(req)
}

type linkedIn struct{ base }

func (linkedIn) KeepsTokens() bool { return true }

func (l linkedIn) Revoke(ctx context.Context, _ string, t entity.Tokens) error {
	form := url.Values{
		"token":         {t.Revocable()},
		"client_id":     {l.conf.ClientID},
		"client_secret": {l.conf.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return l.do(req)
}

// Providers is the closed set of social logins, keyed by provider name.
type Providers map[string]Provider

// NewProviders builds the three providers from cfg. client carries every
// call to the provider endpoints.
func NewProviders(cfg *config.Config, client *http.Client) Providers {
	if client == nil {
		client = http.DefaultClient
	}
	return Providers{
		userentity.ProviderFacebook: facebook{newBase(userentity.ProviderFacebook, cfg.Facebook, facebookTokenURL, facebookGraphURL, client)},
		userentity.ProviderGoogle:   google{newBase(userentity.ProviderGoogle, cfg.Google, googleTokenURL, googleRevokeURL, client)},
		userentity.ProviderLinkedIn: linkedIn{newBase(userentity.ProviderLinkedIn, cfg.LinkedIn, linkedInTokenURL, linkedInRevokeURL, client)},
	}
}

// Get returns the provider for name or ErrProviderNotFound.
func (ps Providers) Get(name string) (Provider, error) {
	p, ok := ps[strings.ToLower(name)]
	if !ok {
		return nil, apperr.ErrProviderNotFound
	}
	return p, nil
}
