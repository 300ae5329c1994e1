// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/rpgate/gateway"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
)

// Completer completes the authentication attempt of a session.
// *gateway.Authenticator is a Completer.
type Completer interface {
	CompleteAuth(ctx context.Context, sessionID string, params gateway.CallbackParams) (*principal.Principal, error)
}

// SessionReader returns the session id carried by a request.
// *session.Cookies is a SessionReader.
type SessionReader interface {
	SessionID(req *http.Request) (string, bool)
}

// Handler creates an oidc callback handler, the redirect URI's handler.  It
// reads the authentication response, completes the session's pending
// authentication attempt with the Completer and replies with the
// SuccessResponseFunc or the ErrorResponseFunc.
//
// A request without session gets the error of a session without pending
// request.
func Handler(c Completer, sr SessionReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Handler"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: completer is nil: %w", op, oidc.ErrNilParameter)
	case sr == nil:
		return nil, fmt.Errorf("%s: session reader is nil: %w", op, oidc.ErrNilParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrNilParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		params := ReadParams(req)
		sessionID, _ := sr.SessionID(req)

		p, err := c.CompleteAuth(req.Context(), sessionID, params)
		if err != nil {
			var perr *oidc.ProviderError
			var respErr *oidc.AuthenErrorResponse
			if errors.As(err, &perr) {
				respErr = perr.Response
			}
			eFn(params.State, respErr, err, w, req)
			return
		}
		sFn(p, w, req)
	}, nil
}
