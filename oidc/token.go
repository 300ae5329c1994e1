// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Token is the set of tokens returned by a successful authentication
// response (the TokenSet). It's transient: only the principal extracted
// from it is kept in a session.
type Token struct {
	IDToken      IDToken
	AccessToken  AccessToken
	RefreshToken RefreshToken

	// Expiry is the access token's expiry, zero when unknown.
	Expiry time.Time

	// Claims are the verified id_token claims. Nil until the token has been
	// verified.
	Claims map[string]interface{}
}

// NewToken creates a new Token from an IDToken and an optional
// oauth2.Token. The id_token is required.
func NewToken(i IDToken, t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if i == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrMissingIDToken)
	}
	tk := &Token{IDToken: i}
	if t != nil {
		tk.AccessToken = AccessToken(t.AccessToken)
		tk.RefreshToken = RefreshToken(t.RefreshToken)
		tk.Expiry = t.Expiry
	}
	return tk, nil
}

// IsExpired will return true if the token's access token is expired.  A
// token without an access token expiry never expires.
func (t *Token) IsExpired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Before(now)
}
