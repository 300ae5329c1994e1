// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/rpgate/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("s", MinSecretLength))

func TestNewCookies(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	_, err := NewCookies([]byte("too-short"))
	assert.ErrorIs(err, oidc.ErrInvalidParameter)

	c, err := NewCookies(testSecret, WithCookieName("custom"))
	require.NoError(err)
	assert.Equal("custom", c.Name())
}

func TestCookies_Ensure(t *testing.T) {
	t.Parallel()
	c, err := NewCookies(testSecret, WithTTL(time.Hour), WithSecure(true))
	require.NoError(t, err)

	t.Run("new-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest(http.MethodGet, "/auth", nil)
		_, ok := c.SessionID(req)
		assert.False(ok)

		w := httptest.NewRecorder()
		id, err := c.Ensure(w, req)
		require.NoError(err)
		assert.NotEmpty(id)

		cookies := w.Result().Cookies()
		require.Len(cookies, 1)
		cookie := cookies[0]
		assert.Equal(DefaultCookieName, cookie.Name)
		assert.True(cookie.HttpOnly)
		assert.True(cookie.Secure)
		assert.Equal(http.SameSiteLaxMode, cookie.SameSite)
		assert.Equal(3600, cookie.MaxAge)

		// the cookie carries the id to the next request
		next := httptest.NewRequest(http.MethodGet, "/profile", nil)
		next.AddCookie(cookie)
		got, ok := c.SessionID(next)
		assert.True(ok)
		assert.Equal(id, got)

		w = httptest.NewRecorder()
		again, err := c.Ensure(w, next)
		require.NoError(err)
		assert.Equal(id, again)
		assert.Empty(w.Result().Cookies())
	})
	t.Run("forged-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
		_, ok := c.SessionID(req)
		assert.False(ok)

		other, err := NewCookies([]byte(strings.Repeat("o", MinSecretLength)))
		require.NoError(err)
		w := httptest.NewRecorder()
		_, err = other.Ensure(w, httptest.NewRequest(http.MethodGet, "/auth", nil))
		require.NoError(err)
		req = httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.AddCookie(w.Result().Cookies()[0])
		_, ok = c.SessionID(req)
		assert.False(ok)
	})
}

func TestCookies_SameSite(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		opt          []Option
		wantSameSite http.SameSite
		wantSecure   bool
	}{
		{"default", nil, http.SameSiteLaxMode, false},
		{"strict", []Option{WithSameSite(http.SameSiteStrictMode)}, http.SameSiteStrictMode, false},
		{"none-forces-secure", []Option{WithSameSite(http.SameSiteNoneMode)}, http.SameSiteNoneMode, true},
		{"none-secure", []Option{WithSameSite(http.SameSiteNoneMode), WithSecure(true)}, http.SameSiteNoneMode, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			c, err := NewCookies(testSecret, tt.opt...)
			require.NoError(err)
			w := httptest.NewRecorder()
			_, err = c.Ensure(w, httptest.NewRequest(http.MethodGet, "/auth", nil))
			require.NoError(err)
			cookies := w.Result().Cookies()
			require.Len(cookies, 1)
			assert.Equal(tt.wantSameSite, cookies[0].SameSite)
			assert.Equal(tt.wantSecure, cookies[0].Secure)
			assert.True(cookies[0].HttpOnly)
		})
	}
}

func TestCookies_Clear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewCookies(testSecret)
	require.NoError(err)
	w := httptest.NewRecorder()
	require.NoError(c.Clear(w, httptest.NewRequest(http.MethodGet, "/logout", nil)))
	cookies := w.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(DefaultCookieName, cookies[0].Name)
	assert.True(cookies[0].MaxAge < 0)
}
