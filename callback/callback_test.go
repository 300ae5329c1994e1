// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/gateway"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
	"github.com/hashicorp/rpgate/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	t.Parallel()
	c := &testCompleter{}
	sr := testSessionReader("sid")
	tests := []struct {
		name string
		c    Completer
		sr   SessionReader
		sFn  SuccessResponseFunc
		eFn  ErrorResponseFunc
	}{
		{"nil-completer", nil, sr, testSuccessFn, testFailFn},
		{"nil-session-reader", c, nil, testSuccessFn, testFailFn},
		{"nil-sFn", c, sr, nil, testFailFn},
		{"nil-eFn", c, sr, testSuccessFn, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			got, err := Handler(tt.c, tt.sr, tt.sFn, tt.eFn)
			assert.ErrorIs(err, oidc.ErrNilParameter)
			assert.Nil(got)
		})
	}
}

func TestHandler_Responses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		completer      *testCompleter
		sessionID      string
		method         string
		query          url.Values
		form           url.Values
		wantParams     gateway.CallbackParams
		wantSessionID  string
		wantStatusCode int
		wantRespError  string
	}{
		{
			name:           "success-query",
			completer:      &testCompleter{p: &principal.Principal{Subject: "alice", Issuer: "iss"}},
			sessionID:      "sid",
			method:         http.MethodGet,
			query:          url.Values{"state": {"s"}, "code": {"c"}},
			wantParams:     gateway.CallbackParams{State: "s", Code: "c"},
			wantSessionID:  "sid",
			wantStatusCode: http.StatusOK,
		},
		{
			name:      "success-form-post",
			completer: &testCompleter{p: &principal.Principal{Subject: "alice", Issuer: "iss"}},
			sessionID: "sid",
			method:    http.MethodPost,
			form: url.Values{
				"state":        {"s"},
				"id_token":     {"idt"},
				"access_token": {"at"},
			},
			wantParams:     gateway.CallbackParams{State: "s", IDToken: "idt", AccessToken: "at"},
			wantSessionID:  "sid",
			wantStatusCode: http.StatusOK,
		},
		{
			name: "provider-error",
			completer: &testCompleter{err: fmt.Errorf("op: %w", &oidc.ProviderError{
				Response: &oidc.AuthenErrorResponse{Error: "access_denied", Description: "no"},
			})},
			sessionID: "sid",
			method:    http.MethodGet,
			query: url.Values{
				"state":             {"s"},
				"error":             {"access_denied"},
				"error_description": {"no"},
				"error_uri":         {"https://idp/help"},
			},
			wantParams: gateway.CallbackParams{
				State:            "s",
				Error:            "access_denied",
				ErrorDescription: "no",
				ErrorURI:         "https://idp/help",
			},
			wantSessionID:  "sid",
			wantStatusCode: http.StatusUnauthorized,
			wantRespError:  "access_denied",
		},
		{
			name:           "no-session",
			completer:      &testCompleter{err: fmt.Errorf("op: %w", oidc.ErrMissingPendingRequest)},
			method:         http.MethodGet,
			query:          url.Values{"state": {"s"}, "code": {"c"}},
			wantParams:     gateway.CallbackParams{State: "s", Code: "c"},
			wantStatusCode: http.StatusInternalServerError,
			wantRespError:  "internal-callback-error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			h, err := Handler(tt.completer, testSessionReader(tt.sessionID), testSuccessFn, testFailFn)
			require.NoError(err)

			target := "/auth/callback"
			if tt.query != nil {
				target += "?" + tt.query.Encode()
			}
			var req *http.Request
			if tt.form != nil {
				req = httptest.NewRequest(tt.method, target, strings.NewReader(tt.form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = httptest.NewRequest(tt.method, target, nil)
			}
			w := httptest.NewRecorder()
			h(w, req)

			assert.Equal(tt.wantStatusCode, w.Code)
			assert.Equal(tt.wantParams, tt.completer.params)
			assert.Equal(tt.wantSessionID, tt.completer.sessionID)
			if tt.wantRespError != "" {
				var got oidc.AuthenErrorResponse
				require.NoError(json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(tt.wantRespError, got.Error)
			}
		})
	}
}

func TestHandler_WithAuthenticator(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := oidc.StartTestProvider(t)
	p, err := oidc.NewProvider(oidc.TestNewConfig(t, tp, oidc.TestRedirectURI))
	require.NoError(err)
	t.Cleanup(p.Done)
	s, err := session.NewStore(session.NewMemoryBackend())
	require.NoError(err)
	a, err := gateway.NewAuthenticator(p, s)
	require.NoError(err)

	h, err := Handler(a, testSessionReader("sid"), RedirectOnSuccess("/profile"), RedirectOnError("/", hclog.NewNullLogger()))
	require.NoError(err)

	authURL, err := a.BeginAuth(context.Background(), "sid")
	require.NoError(err)
	params := tp.Authorize(t, authURL)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/auth/callback?"+params.Encode(), nil))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/profile", w.Header().Get("Location"))

	// the same response can't be used twice
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/auth/callback?"+params.Encode(), nil))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/", w.Header().Get("Location"))
}
