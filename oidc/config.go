// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/rpgate/oidc/internal/strutils"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

const (
	// ScopeOpenID is the required scope for every oidc authentication request.
	ScopeOpenID = oidc.ScopeOpenID

	// ResponseTypeCode is the default response type (authorization code
	// flow).
	ResponseTypeCode = "code"

	// ResponseModeFormPost delivers the authentication response as a form
	// POST to the redirect URI.
	ResponseModeFormPost = "form_post"

	// DefaultRequestTTL is how long a pending request remains valid.
	DefaultRequestTTL = 10 * time.Minute

	// DefaultProviderTimeout bounds every network call made to the provider.
	DefaultProviderTimeout = 10 * time.Second
)

var supportedResponseTypes = []string{
	"code",
	"id_token",
	"id_token token",
	"code id_token",
	"code token",
	"code id_token token",
}

var supportedResponseModes = []string{
	"query",
	"fragment",
	"form_post",
}

// Metadata describes a remote identity provider: its issuer and the
// endpoints the relying party talks to.
type Metadata struct {
	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.  It must equal the "iss" claim of
	// every id_token.
	Issuer string

	// AuthURL is the provider's authorization endpoint.
	AuthURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// UserInfoURL is the provider's user info endpoint.
	UserInfoURL string

	// JWKSURL is the provider's JSON Web Key Set document.
	JWKSURL string

	// SupportedSigningAlgs is a list of supported signing algorithms.
	// Defaults to RS256.
	SupportedSigningAlgs []Alg
}

// Registration is the relying party's client registration with the
// provider.
type Registration struct {
	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the relying party secret.
	ClientSecret ClientSecret

	// RedirectURIs is the ordered set of permitted redirect URIs. The first
	// one is used when building authorization requests.  URIs are compared
	// byte for byte, they are never normalized.
	RedirectURIs []string
}

// Config is the immutable provider registry: the provider's metadata, the
// client registration and the parameters of every authentication request.
// It is loaded once at startup and is safe for concurrent reads.
type Config struct {
	Metadata
	Registration

	// Scopes requested. Always contains "openid".
	Scopes []string

	// ResponseType requested. Defaults to "code".
	ResponseType string

	// ResponseMode is optional, when empty the provider's default for the
	// response type applies.
	ResponseMode string

	// RequestTTL is how long a pending request remains valid.
	RequestTTL time.Duration

	// ProviderTimeout bounds token and user info requests.
	ProviderTimeout time.Duration

	// FetchUserInfo enables the user info request after a successful token
	// verification.
	FetchUserInfo bool

	// ProviderCA is an optional CA certs (PEM encoded) to use when sending
	// requests to the provider.
	ProviderCA string

	// NowFunc is a time func that returns the current time.
	NowFunc func() time.Time
}

// NewConfig composes a new config for a provider and client registration and
// validates it.  Every problem found is returned (see Validate).
//
// Supported options:
//
//	WithScopes
//	WithResponseType
//	WithResponseMode
//	WithRequestTTL
//	WithProviderTimeout
//	WithoutUserInfo
//	WithProviderCA
//	WithNow
func NewConfig(m Metadata, r Registration, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)

	if len(m.SupportedSigningAlgs) == 0 {
		m.SupportedSigningAlgs = []Alg{RS256}
	}
	scopes := strutils.RemoveDuplicatesStable(append([]string{ScopeOpenID}, opts.withScopes...), false)

	c := &Config{
		Metadata:        m,
		Registration:    r,
		Scopes:          scopes,
		ResponseType:    opts.withResponseType,
		ResponseMode:    opts.withResponseMode,
		RequestTTL:      opts.withRequestTTL,
		ProviderTimeout: opts.withProviderTimeout,
		FetchUserInfo:   !opts.withoutUserInfo,
		ProviderCA:      opts.withProviderCA,
		NowFunc:         opts.withNowFunc,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  Unlike most validations, it doesn't
// stop at the first problem: all of them are collected in a
// *multierror.Error and each wraps ErrInvalidParameter. It doesn't verify the
// provider is reachable.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	invalid := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), ErrInvalidParameter))
	}

	if c.Issuer == "" {
		invalid("issuer is empty")
	} else if err := validURL(c.Issuer); err != nil {
		invalid("issuer %q is invalid: %s", c.Issuer, err)
	}
	for _, e := range []struct{ name, url string }{
		{"authorization endpoint", c.AuthURL},
		{"token endpoint", c.TokenURL},
		{"user info endpoint", c.UserInfoURL},
		{"key set URL", c.JWKSURL},
	} {
		switch {
		case e.url == "":
			invalid("%s is empty", e.name)
		default:
			if err := validURL(e.url); err != nil {
				invalid("%s %q is invalid: %s", e.name, e.url, err)
			}
		}
	}
	if c.ClientID == "" {
		invalid("client id is empty")
	}
	if c.ClientSecret == "" {
		invalid("client secret is empty")
	}
	if len(c.RedirectURIs) == 0 {
		invalid("redirect URIs are empty")
	}
	for _, u := range c.RedirectURIs {
		if err := validURL(u); err != nil {
			invalid("redirect URI %q is invalid: %s", u, err)
		}
	}
	if len(c.SupportedSigningAlgs) == 0 {
		invalid("supported algorithms is empty")
	}
	for _, a := range c.SupportedSigningAlgs {
		if !a.IsSupported() {
			invalid("unsupported algorithm %q", a)
		}
	}
	if !strutils.StrListContains(c.Scopes, ScopeOpenID) {
		invalid("scopes must contain %q", ScopeOpenID)
	}
	if !strutils.StrListContains(supportedResponseTypes, c.ResponseType) {
		invalid("unsupported response type %q", c.ResponseType)
	}
	if c.ResponseMode != "" && !strutils.StrListContains(supportedResponseModes, c.ResponseMode) {
		invalid("unsupported response mode %q", c.ResponseMode)
	}
	// tokens default to the fragment, which never reaches the server
	if c.ResponseType != ResponseTypeCode && strutils.StrListContains(supportedResponseTypes, c.ResponseType) &&
		c.ResponseMode != ResponseModeFormPost {
		invalid("response type %q requires response mode %q", c.ResponseType, ResponseModeFormPost)
	}
	if c.RequestTTL <= 0 {
		invalid("request TTL must be greater than zero")
	}
	if c.ProviderTimeout <= 0 {
		invalid("provider timeout must be greater than zero")
	}
	if c.ProviderCA != "" {
		if ok := x509.NewCertPool().AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			result = multierror.Append(result, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert))
		}
	}
	return result.ErrorOrNil()
}

// RedirectURI returns the redirect URI used for new requests: the first
// registered one.
func (c *Config) RedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

// Now returns the current time using the optional NowFunc.
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

// HTTPClient creates a new http client for the provider configured.  Every
// request it makes is bounded by the ProviderTimeout.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   c.ProviderTimeout,
	}, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

func validURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if !strutils.StrListContains([]string{"https", "http"}, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}

// configOptions is the set of available options
type configOptions struct {
	withScopes          []string
	withResponseType    string
	withResponseMode    string
	withRequestTTL      time.Duration
	withProviderTimeout time.Duration
	withoutUserInfo     bool
	withProviderCA      string
	withNowFunc         func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withResponseType:    ResponseTypeCode,
		withRequestTTL:      DefaultRequestTTL,
		withProviderTimeout: DefaultProviderTimeout,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for: Config, Request.
// "openid" is always requested and doesn't need to be part of the list.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *reqOptions:
			v.withScopes = scopes
		}
	}
}

// WithResponseType provides an optional response type (default: "code")
// for: Config, Request
func WithResponseType(responseType string) Option {
	return func(o interface{}) {
		if responseType == "" {
			return
		}
		switch v := o.(type) {
		case *configOptions:
			v.withResponseType = responseType
		case *reqOptions:
			v.withResponseType = responseType
		}
	}
}

// WithResponseMode provides an optional response mode, for example:
// "form_post", for: Config, Request
func WithResponseMode(mode string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withResponseMode = mode
		case *reqOptions:
			v.withResponseMode = mode
		}
	}
}

// WithRequestTTL provides an optional pending request TTL.
func WithRequestTTL(ttl time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRequestTTL = ttl
		}
	}
}

// WithProviderTimeout provides an optional timeout for provider requests.
func WithProviderTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderTimeout = d
		}
	}
}

// WithoutUserInfo disables the user info request.
func WithoutUserInfo() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withoutUserInfo = true
		}
	}
}

// WithProviderCA provides an optional CA certs (PEM encoded) for the
// provider's config.  These certs will can be used when making http requests
// to the provider.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
