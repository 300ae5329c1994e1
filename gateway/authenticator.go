// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
	"github.com/hashicorp/rpgate/session"
	"golang.org/x/oauth2"
)

// CallbackParams are the parameters of an authentication response, received
// by the redirect URI as query or form parameters.
type CallbackParams struct {
	State string
	Code  string

	// IDToken and AccessToken are only sent by the provider for response
	// types returning tokens from the authorization endpoint.
	IDToken     string
	AccessToken string

	// Error, ErrorDescription and ErrorURI are set when the provider
	// answered with an error response.
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// PrincipalBinder is called with every newly authenticated principal before
// it's bound to the session.  It may return a different principal, or an
// error to refuse it.
type PrincipalBinder func(ctx context.Context, p *principal.Principal) (*principal.Principal, error)

// Authenticator runs the relying party side of the OIDC flow: it begins
// authentication attempts, completes them and answers access checks for
// sessions.  It's safe for concurrent use.
type Authenticator struct {
	provider *oidc.Provider
	store    *session.Store
	codec    *principal.Codec
	binder   PrincipalBinder
	logger   hclog.Logger
}

// NewAuthenticator creates an Authenticator.
//
// Supported options: WithLogger, WithCodec, WithPrincipalBinder
func NewAuthenticator(p *oidc.Provider, s *session.Store, opt ...Option) (*Authenticator, error) {
	const op = "gateway.NewAuthenticator"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case s == nil:
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Authenticator{
		provider: p,
		store:    s,
		codec:    opts.withCodec,
		binder:   opts.withBinder,
		logger:   opts.withLogger,
	}, nil
}

// BeginAuth starts a new authentication attempt for the session and returns
// the URL of the provider's authorization endpoint the user agent must be
// redirected to.  Any pending request or principal the session held is
// replaced.  It makes no network request.
func (a *Authenticator) BeginAuth(ctx context.Context, sessionID string) (string, error) {
	const op = "Authenticator.BeginAuth"
	if sessionID == "" {
		return "", fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	cfg := a.provider.Config()
	req, err := oidc.NewRequest(cfg.RequestTTL, cfg.RedirectURI(),
		oidc.WithScopes(cfg.Scopes...),
		oidc.WithResponseType(cfg.ResponseType),
		oidc.WithResponseMode(cfg.ResponseMode),
		oidc.WithNow(cfg.NowFunc),
	)
	if err != nil {
		return "", fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	authURL, err := a.provider.AuthURL(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: unable to create auth url: %w", op, err)
	}
	err = a.store.Update(ctx, sessionID, func(r *session.Record) error {
		r.Request = req
		r.Principal = nil
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: unable to store request: %w", op, err)
	}
	a.logger.Debug("authentication started", "expires_at", req.ExpiresAt)
	return authURL, nil
}

// CompleteAuth completes the session's pending authentication attempt with
// the callback parameters and returns the principal now bound to the
// session.
//
// The pending request is removed before anything else happens, whatever the
// outcome: a request can only be completed once.  Errors wrap one of
// oidc.ErrMissingPendingRequest, oidc.ErrStateMismatch,
// oidc.ErrAuthenticationDenied, oidc.ErrTokenExchangeFailed or
// oidc.ErrTokenValidationFailed.  Nothing is retried.
//
// When BeginAuth starts a newer attempt for the session while this one is
// talking to the provider, the newer attempt wins: its pending request is
// kept, no principal is bound and the error wraps both
// oidc.ErrMissingPendingRequest and oidc.ErrSupersededRequest.
func (a *Authenticator) CompleteAuth(ctx context.Context, sessionID string, params CallbackParams) (*principal.Principal, error) {
	const op = "Authenticator.CompleteAuth"
	if sessionID == "" {
		return nil, fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrMissingPendingRequest)
	}
	phase := PhaseStarted
	enter := func(p Phase) {
		phase = p
		a.logger.Trace("authentication phase", "phase", p)
	}
	fail := func(err error) error {
		a.logger.Debug("authentication failed", "phase", phase, "error", err)
		enter(PhaseFailed)
		return fmt.Errorf("%s: %w", op, err)
	}
	enter(PhaseStarted)
	cfg := a.provider.Config()

	var pending *oidc.Request
	err := a.store.Update(ctx, sessionID, func(r *session.Record) error {
		pending, r.Request = r.Request, nil
		return nil
	})
	switch {
	case err != nil:
		return nil, fail(fmt.Errorf("unable to read pending request: %w", err))
	case pending == nil:
		return nil, fail(fmt.Errorf("no pending request: %w", oidc.ErrMissingPendingRequest))
	case pending.IsExpired(oidc.WithNow(cfg.NowFunc)):
		return nil, fail(fmt.Errorf("pending request: %w: %w", oidc.ErrMissingPendingRequest, oidc.ErrExpiredRequest))
	}

	enter(PhaseValidating)
	if subtle.ConstantTimeCompare([]byte(params.State), []byte(pending.State)) != 1 {
		return nil, fail(fmt.Errorf("callback state does not match: %w", oidc.ErrStateMismatch))
	}
	if params.Error != "" {
		return nil, fail(&oidc.ProviderError{Response: &oidc.AuthenErrorResponse{
			Error:       params.Error,
			Description: params.ErrorDescription,
			Uri:         params.ErrorURI,
		}})
	}

	enter(PhaseExchanging)
	tk, err := a.tokens(ctx, pending, params)
	if err != nil {
		return nil, fail(err)
	}
	sub, _ := tk.Claims["sub"].(string)
	if sub == "" {
		return nil, fail(fmt.Errorf("id_token has no subject: %w: %w", oidc.ErrTokenValidationFailed, principal.ErrInvalidPrincipal))
	}

	var userInfo map[string]interface{}
	if cfg.FetchUserInfo && tk.AccessToken != "" {
		if userInfo, err = a.provider.UserInfo(ctx, tk.AccessToken, sub); err != nil {
			return nil, fail(err)
		}
	}

	p, err := principal.FromClaims(tk.Claims, userInfo, cfg.Now())
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %w", oidc.ErrTokenValidationFailed, err))
	}
	if a.binder != nil {
		bound, err := a.binder(ctx, p)
		switch {
		case err != nil:
			return nil, fail(fmt.Errorf("principal refused: %w: %w", oidc.ErrAuthenticationDenied, err))
		case bound == nil:
			return nil, fail(fmt.Errorf("principal refused: %w", oidc.ErrAuthenticationDenied))
		}
		p = bound
	}
	encoded, err := a.codec.Encode(p)
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %w", oidc.ErrTokenValidationFailed, err))
	}

	err = a.store.Update(ctx, sessionID, func(r *session.Record) error {
		if r.Request != nil {
			return fmt.Errorf("newer attempt pending: %w: %w", oidc.ErrMissingPendingRequest, oidc.ErrSupersededRequest)
		}
		r.Principal = encoded
		return nil
	})
	switch {
	case errors.Is(err, oidc.ErrSupersededRequest):
		return nil, fail(err)
	case err != nil:
		return nil, fail(fmt.Errorf("unable to store principal: %w", err))
	}
	enter(PhaseSucceeded)
	a.logger.Info("authenticated", "iss", p.Issuer, "sub", p.Subject)
	return p, nil
}

// tokens returns the verified tokens of the authentication response: the
// authorization code is exchanged when present, otherwise the tokens
// received by the callback are verified, provided the request asked for an
// id_token.
func (a *Authenticator) tokens(ctx context.Context, pending *oidc.Request, params CallbackParams) (*oidc.Token, error) {
	if params.Code != "" {
		return a.provider.Exchange(ctx, pending, params.Code)
	}
	if params.IDToken == "" {
		return nil, fmt.Errorf("no code or id_token in callback: %w: %w", oidc.ErrTokenValidationFailed, oidc.ErrMissingIDToken)
	}
	if !hasResponseType(pending.ResponseType, "id_token") {
		return nil, fmt.Errorf("id_token in callback but response type is %q: %w", pending.ResponseType, oidc.ErrTokenValidationFailed)
	}
	var oauth2Token *oauth2.Token
	if params.AccessToken != "" {
		oauth2Token = &oauth2.Token{AccessToken: params.AccessToken}
	}
	tk, err := oidc.NewToken(oidc.IDToken(params.IDToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oidc.ErrTokenValidationFailed, err)
	}
	claims, err := a.provider.VerifyIDToken(ctx, tk.IDToken, pending.Nonce, oidc.WithAccessToken(tk.AccessToken))
	if err != nil {
		return nil, err
	}
	tk.Claims = claims
	return tk, nil
}

// hasResponseType reports whether the space separated response type
// contains part.
func hasResponseType(responseType, part string) bool {
	for _, f := range strings.Fields(responseType) {
		if f == part {
			return true
		}
	}
	return false
}

// Authorize returns the principal bound to the session, or an error wrapping
// oidc.ErrUnauthenticated when there's none.  It never modifies the session.
func (a *Authenticator) Authorize(ctx context.Context, sessionID string) (*principal.Principal, error) {
	const op = "Authenticator.Authorize"
	if sessionID == "" {
		return nil, fmt.Errorf("%s: no session: %w", op, oidc.ErrUnauthenticated)
	}
	r, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(r.Principal) == 0 {
		return nil, fmt.Errorf("%s: no principal: %w", op, oidc.ErrUnauthenticated)
	}
	p, err := a.codec.Decode(r.Principal)
	if err != nil {
		a.logger.Warn("unreadable principal in session", "error", err)
		return nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrUnauthenticated, err)
	}
	return p, nil
}

// EndSession removes everything the session holds.
func (a *Authenticator) EndSession(ctx context.Context, sessionID string) error {
	const op = "Authenticator.EndSession"
	if sessionID == "" {
		return nil
	}
	if err := a.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Debug("session ended")
	return nil
}
