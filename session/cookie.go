// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/oidc"
)

const (
	// DefaultCookieName is the default session cookie name.
	DefaultCookieName = "rpgate"

	// MinSecretLength is the minimum length of the secret signing session
	// cookies.
	MinSecretLength = 32

	sessionIDKey = "sid"
)

// Cookies carries session ids in a signed cookie.  The cookie only ever holds
// the random session id, session contents stay in the Store.
type Cookies struct {
	store  *sessions.CookieStore
	name   string
	logger hclog.Logger
}

// NewCookies creates Cookies signing the cookie with secret, which must be at
// least MinSecretLength bytes.
//
// Supported options: WithCookieName, WithTTL, WithSecure, WithSameSite,
// WithLogger
func NewCookies(secret []byte, opt ...Option) (*Cookies, error) {
	const op = "session.NewCookies"
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%s: secret must be at least %d bytes: %w", op, MinSecretLength, oidc.ErrInvalidParameter)
	}
	opts := getOpts(opt...)

	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.withTTL.Seconds()),
		HttpOnly: true,
		// browsers drop SameSite=None cookies which aren't Secure
		Secure:   opts.withSecure || opts.withSameSite == http.SameSiteNoneMode,
		SameSite: opts.withSameSite,
	}
	cs.MaxAge(cs.Options.MaxAge)
	return &Cookies{
		store:  cs,
		name:   opts.withCookieName,
		logger: opts.withLogger,
	}, nil
}

// Name returns the cookie name.
func (c *Cookies) Name() string {
	return c.name
}

// SessionID returns the request's session id, from its cookie.  It returns
// false when the request has no (valid) session cookie.
func (c *Cookies) SessionID(req *http.Request) (string, bool) {
	sess, err := c.store.Get(req, c.name)
	if err != nil {
		c.logger.Debug("ignoring invalid session cookie", "error", err)
		return "", false
	}
	id, ok := sess.Values[sessionIDKey].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Ensure returns the request's session id, creating a new session (and
// setting its cookie on w) when the request has none.
func (c *Cookies) Ensure(w http.ResponseWriter, req *http.Request) (string, error) {
	const op = "Cookies.Ensure"
	if id, ok := c.SessionID(req); ok {
		return id, nil
	}
	id, err := oidc.NewID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	// on a verification failure Get still returns a new session, which
	// replaces the bad cookie
	sess, _ := c.store.Get(req, c.name)
	sess.Values[sessionIDKey] = id
	if err := sess.Save(req, w); err != nil {
		return "", fmt.Errorf("%s: unable to save session cookie: %w", op, err)
	}
	return id, nil
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter, req *http.Request) error {
	const op = "Cookies.Clear"
	sess := sessions.NewSession(c.store, c.name)
	opts := *c.store.Options
	opts.MaxAge = -1
	sess.Options = &opts
	if err := sess.Save(req, w); err != nil {
		return fmt.Errorf("%s: unable to clear session cookie: %w", op, err)
	}
	return nil
}
