// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/rpgate/oidc/internal/strutils"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider described by a Config.
// It's safe for concurrent use once created.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing the JWKS key set.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider.  Every endpoint comes from
// the Config, so no discovery request is made and nothing is sent to the
// provider until the first token is verified.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	algs := make([]string, 0, len(c.SupportedSigningAlgs))
	for _, a := range c.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	pc := &oidc.ProviderConfig{
		IssuerURL:   c.Issuer,
		AuthURL:     c.AuthURL,
		TokenURL:    c.TokenURL,
		UserInfoURL: c.UserInfoURL,
		JWKSURL:     c.JWKSURL,
		Algorithms:  algs,
	}
	// the key set keeps the background ctx (and its http client) for
	// refreshing keys.
	p.provider = pc.NewProvider(HTTPClientContext(p.backgroundCtx, client))
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's config.
func (p *Provider) Config() *Config {
	return p.config
}

// AuthURL will generate a URL the caller can use to kick off an OIDC flow
// with the provider for the Request.  The authorization endpoint's existing
// query parameters are preserved.  No network request is made.
func (p *Provider) AuthURL(ctx context.Context, r *Request) (string, error) {
	const op = "Provider.AuthURL"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State == "" || r.Nonce == "" {
		return "", fmt.Errorf("%s: request state and nonce are required: %w", op, ErrInvalidParameter)
	}
	if r.State == r.Nonce {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if !strutils.StrListContains(p.config.RedirectURIs, r.RedirectURI) {
		return "", fmt.Errorf("%s: redirect URI %q is not registered: %w", op, r.RedirectURI, ErrInvalidParameter)
	}
	u, err := url.Parse(p.config.AuthURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse authorization endpoint: %w", op, err)
	}

	scopes := r.Scopes
	if !strutils.StrListContains(scopes, ScopeOpenID) {
		scopes = append([]string{ScopeOpenID}, scopes...)
	}
	responseType := r.ResponseType
	if responseType == "" {
		responseType = ResponseTypeCode
	}

	v := u.Query()
	v.Set("client_id", p.config.ClientID)
	v.Set("redirect_uri", r.RedirectURI)
	v.Set("response_type", responseType)
	if r.ResponseMode != "" {
		v.Set("response_mode", r.ResponseMode)
	}
	v.Set("scope", strings.Join(scopes, " "))
	v.Set("nonce", r.Nonce)
	v.Set("state", r.State)
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// Exchange will request a token from the provider's token endpoint, using
// the authorization code it received in an earlier successful authentication
// response for the Request.  The returned Token's id_token is verified (see
// VerifyIDToken) and its Claims are populated.
//
// Network and provider failures are returned wrapping ErrTokenExchangeFailed,
// a missing or invalid id_token wrapping ErrTokenValidationFailed.  Every call
// is bounded by the config's ProviderTimeout.
func (p *Provider) Exchange(ctx context.Context, r *Request, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	if r.IsExpired(WithNow(p.config.NowFunc)) {
		return nil, fmt.Errorf("%s: request is expired: %w: %w", op, ErrMissingPendingRequest, ErrExpiredRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ProviderTimeout)
	defer cancel()
	oidcCtx := HTTPClientContext(ctx, p.client)

	oauth2Config := oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  r.RedirectURI,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       r.Scopes,
	}
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrTokenExchangeFailed, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w: %w", op, ErrTokenValidationFailed, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w: %w", op, ErrTokenValidationFailed, err)
	}
	claims, err := p.VerifyIDToken(ctx, t.IDToken, r.Nonce, WithAccessToken(t.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	t.Claims = claims
	return t, nil
}

// VerifyIDToken will verify the inbound IDToken and return its claims.  It
// verifies it's been signed by the provider, its issuer, that its audience
// contains the client id, that it's not expired and that its nonce matches.
// When an access token is provided (WithAccessToken) and the id_token has an
// at_hash claim, the access token's hash is verified as well.
//
// Every verification failure wraps ErrTokenValidationFailed.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string, opt ...Option) (map[string]interface{}, error) {
	const op = "Provider.VerifyIDToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w: %w", op, ErrTokenValidationFailed, ErrMissingIDToken)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	opts := getVerifyOpts(opt...)

	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  p.config.Now,
	})

	oidcIDToken, err := verifier.Verify(HTTPClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id_token: %w: %w", op, ErrTokenValidationFailed, err)
	}
	if subtle.ConstantTimeCompare([]byte(oidcIDToken.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("%s: nonce does not match: %w: %w", op, ErrTokenValidationFailed, ErrInvalidNonce)
	}
	if oidcIDToken.AccessTokenHash != "" && opts.withAccessToken != "" {
		if err := oidcIDToken.VerifyAccessToken(string(opts.withAccessToken)); err != nil {
			return nil, fmt.Errorf("%s: %s: %w: %w", op, err, ErrTokenValidationFailed, ErrInvalidAtHash)
		}
	}

	var claims map[string]interface{}
	if err := oidcIDToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token claims: %w: %w", op, ErrTokenValidationFailed, err)
	}
	return claims, nil
}

// UserInfo gets the user info claims from the provider using the access
// token.  The user info "sub" must equal the subject (the id_token's "sub").
// Request failures wrap ErrTokenExchangeFailed, a subject mismatch wraps
// ErrTokenValidationFailed.
func (p *Provider) UserInfo(ctx context.Context, t AccessToken, subject string) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	if t == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	if subject == "" {
		return nil, fmt.Errorf("%s: subject is empty: %w", op, ErrInvalidParameter)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ProviderTimeout)
	defer cancel()

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(t)})
	userinfo, err := p.provider.UserInfo(HTTPClientContext(ctx, p.client), tokenSource)
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed: %w: %w", op, ErrTokenExchangeFailed, err)
	}
	if subtle.ConstantTimeCompare([]byte(userinfo.Subject), []byte(subject)) != 1 {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenValidationFailed, ErrSubjectMismatch)
	}
	var claims map[string]interface{}
	if err := userinfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims: %w: %w", op, ErrTokenValidationFailed, err)
	}
	return claims, nil
}

// verifyOptions is the set of available options for VerifyIDToken
type verifyOptions struct {
	withAccessToken AccessToken
}

func verifyDefaults() verifyOptions {
	return verifyOptions{}
}

func getVerifyOpts(opt ...Option) verifyOptions {
	opts := verifyDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAccessToken provides an optional access token to verify against the
// id_token's at_hash claim, for: Provider.VerifyIDToken
func WithAccessToken(t AccessToken) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifyOptions); ok {
			o.withAccessToken = t
		}
	}
}
