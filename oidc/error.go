// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

// Parameter and internal errors.
var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed = errors.New("id generation failed")
	ErrUnsupportedAlg    = errors.New("unsupported signing algorithm")
	ErrExpiredRequest    = errors.New("request is expired")
	ErrSupersededRequest = errors.New("request superseded by a newer one")
	ErrMissingIDToken    = errors.New("id_token is missing")
	ErrInvalidNonce      = errors.New("invalid id_token nonce")
	ErrInvalidAtHash     = errors.New("invalid id_token at_hash")
	ErrSubjectMismatch   = errors.New("user info subject does not match id_token subject")
)

// Authentication flow errors. Every error returned while completing an
// authentication attempt wraps exactly one of these.
var (
	// ErrMissingPendingRequest means the session holds no (unexpired) pending
	// request: the flow never started or has already been consumed.
	ErrMissingPendingRequest = errors.New("missing pending authentication request")

	// ErrStateMismatch means the callback state does not equal the pending
	// request's state.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrAuthenticationDenied means the provider answered the authentication
	// request with an error response.
	ErrAuthenticationDenied = errors.New("authentication denied by provider")

	// ErrTokenExchangeFailed means a network or provider error occurred
	// talking to the token or user info endpoints.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrTokenValidationFailed means the id_token (or user info response)
	// failed signature or claims validation.
	ErrTokenValidationFailed = errors.New("token validation failed")
)

// ErrUnauthenticated is returned by access checks when no principal is bound
// to the session. It is an expected outcome, not a flow failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}

// String returns a printable form of the provider's error response.
func (r *AuthenErrorResponse) String() string {
	if r == nil {
		return ""
	}
	if r.Description == "" {
		return r.Error
	}
	return fmt.Sprintf("%s: %s", r.Error, r.Description)
}

// ProviderError is returned (wrapped) when the provider redirected back with
// an authentication error response. It unwraps to ErrAuthenticationDenied.
type ProviderError struct {
	Response *AuthenErrorResponse
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthenticationDenied, e.Response)
}

// Unwrap returns ErrAuthenticationDenied.
func (e *ProviderError) Unwrap() error { return ErrAuthenticationDenied }
