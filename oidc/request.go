// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"
)

// DefaultRequestExpirySkew defines a default time skew when checking a
// Request's expiration.
const DefaultRequestExpirySkew = 1 * time.Second

// Request basically represents one OIDC authentication flow for a user. It
// contains the data needed to uniquely represent that one-time flow across the
// multiple interactions needed to complete the OIDC flow the user is
// attempting.
//
// State and Nonce cannot be equal, and will be used during the OIDC flow to
// prevent CSRF and replay attacks (see OpenID Connect Core 1.0). A
// Request is single use: it must be discarded the first time a callback is
// processed for it, whatever the outcome.
//
// The fields are exported so a Request can be persisted in a session.
type Request struct {
	// State is a unique identifier and an opaque value used to maintain
	// state between the oidc request and the callback.
	State string `msgpack:"state"`

	// Nonce is a unique nonce and a string value used to associate a Client
	// session with an ID Token, and to mitigate replay attacks.
	Nonce string `msgpack:"nonce"`

	Scopes       []string `msgpack:"scopes"`
	ResponseType string   `msgpack:"response_type"`
	ResponseMode string   `msgpack:"response_mode,omitempty"`

	// RedirectURI must exactly match one of the client's registered
	// redirect URIs.
	RedirectURI string `msgpack:"redirect_uri"`

	CreatedAt time.Time `msgpack:"created_at"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// NewRequest creates a new Request with a fresh State and Nonce.
//
// Supported options: WithScopes, WithResponseType, WithResponseMode, WithNow
func NewRequest(expireIn time.Duration, redirectURI string, opt ...Option) (*Request, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	opts := getReqOpts(opt...)

	state, err := NewID()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
	}
	nonce, err := NewID()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
	}
	if state == nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrIDGeneratorFailed)
	}

	now := opts.now()
	return &Request{
		State:        state,
		Nonce:        nonce,
		Scopes:       append([]string{}, opts.withScopes...),
		ResponseType: opts.withResponseType,
		ResponseMode: opts.withResponseMode,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expireIn),
	}, nil
}

// IsExpired returns true if the request has expired. Supports the
// WithExpirySkew and WithNow options; if no skew is provided it uses the
// DefaultRequestExpirySkew.
func (r *Request) IsExpired(opt ...Option) bool {
	opts := getReqOpts(opt...)
	return r.ExpiresAt.Before(opts.now().Add(opts.withExpirySkew))
}

// reqOptions is the set of available options for Request functions
type reqOptions struct {
	withScopes       []string
	withResponseType string
	withResponseMode string
	withExpirySkew   time.Duration
	withNowFunc      func() time.Time
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withScopes:       []string{ScopeOpenID},
		withResponseType: ResponseTypeCode,
		withExpirySkew:   DefaultRequestExpirySkew,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides passed in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

func (o reqOptions) now() time.Time {
	if o.withNowFunc != nil {
		return o.withNowFunc()
	}
	return time.Now()
}
