// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

type options struct {
	withTTL             time.Duration
	withCleanupInterval time.Duration
	withLogger          hclog.Logger
	withSecure          bool
	withSameSite        http.SameSite
	withCookieName      string
}

func getDefaults() options {
	return options{
		withTTL:             DefaultTTL,
		withCleanupInterval: DefaultCleanupInterval,
		withLogger:          hclog.NewNullLogger(),
		withSameSite:        http.SameSiteLaxMode,
		withCookieName:      DefaultCookieName,
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTTL provides an optional session lifetime, for: NewStore, NewBackend,
// NewCookies
func WithTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && ttl > 0 {
			o.withTTL = ttl
		}
	}
}

// WithCleanupInterval provides an optional interval for purging expired
// sessions from the in-memory backend.
func WithCleanupInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withCleanupInterval = d
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithSecure marks the session cookie as Secure, for: NewCookies
func WithSecure(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSecure = secure
		}
	}
}

// WithSameSite provides an optional SameSite mode for the session cookie
// (default: Lax), for: NewCookies.  SameSite=None cookies are always Secure.
func WithSameSite(mode http.SameSite) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && mode != http.SameSiteDefaultMode {
			o.withSameSite = mode
		}
	}
}

// WithCookieName provides an optional session cookie name, for: NewCookies
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" {
			o.withCookieName = name
		}
	}
}
