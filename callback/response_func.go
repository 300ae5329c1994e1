// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The principal is the one now bound to the request's session.  The function
// should use the http.ResponseWriter to send back whatever content (headers,
// html, JSON, etc) it wishes to the client that originated the oidc flow.
type SuccessResponseFunc func(p *principal.Principal, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets the provider's authentication error response, if
// there was one, and the error raised while processing the request.  The
// function should use the http.ResponseWriter to send back whatever content
// (headers, html, JSON, etc) it wishes to the client that originated the oidc
// flow.
type ErrorResponseFunc func(state string, respErr *oidc.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// RedirectOnSuccess returns a SuccessResponseFunc redirecting to the url.
func RedirectOnSuccess(url string) SuccessResponseFunc {
	return func(_ *principal.Principal, w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, url, http.StatusFound)
	}
}

// RedirectOnError returns an ErrorResponseFunc logging the error and
// redirecting to the url.  The error is never shown to the user agent.
func RedirectOnError(url string, logger hclog.Logger) ErrorResponseFunc {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return func(_ string, respErr *oidc.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		switch {
		case respErr != nil:
			logger.Info("authentication denied by provider", "error", respErr.Error, "description", respErr.Description)
		case errors.Is(e, oidc.ErrMissingPendingRequest), errors.Is(e, oidc.ErrStateMismatch):
			logger.Warn("unexpected authentication response", "error", e)
		default:
			logger.Error("authentication failed", "error", e)
		}
		http.Redirect(w, req, url, http.StatusFound)
	}
}
