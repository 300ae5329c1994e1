// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/session"
	"github.com/joho/godotenv"
)

const (
	// DefaultPort is used when PORT is unset and TLS is off.
	DefaultPort = 8081

	// DefaultTLSPort is used when PORT is unset and TLS is on.
	DefaultTLSPort = 3000
)

// Secret is a configuration value which is never printed.
type Secret string

// RedactedSecret is the redacted string or json for a Secret.
const RedactedSecret = "[REDACTED: secret]"

// String will redact the secret.
func (s Secret) String() string {
	return RedactedSecret
}

// MarshalJSON will redact the secret.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedSecret)
}

// Config is the gateway's configuration as read from the environment.  Use
// Load to create one: the zero value is not valid.
type Config struct {
	// Provider metadata
	Issuer      string   `env:"ISSUER"`
	AuthURL     string   `env:"AUTH_URL"`
	TokenURL    string   `env:"TOKEN_URL"`
	UserInfoURL string   `env:"USER_URL"`
	JWKSURL     string   `env:"CERT_URL"`
	SigningAlgs []string `env:"SIGNING_ALGS" envSeparator:"," envDefault:"RS256"`

	// ProviderCAFile is an optional PEM file of CAs trusted for provider
	// requests.
	ProviderCAFile string `env:"PROVIDER_CA_FILE"`

	// Client registration
	ClientID     string            `env:"CLIENT_ID"`
	ClientSecret oidc.ClientSecret `env:"CLIENT_SECRET"`
	CallbackURL  string            `env:"CALLBACK_URL"`

	// Request parameters
	Scopes          []string      `env:"SCOPE" envSeparator:" " envDefault:"openid"`
	ResponseType    string        `env:"RESPONSE_TYPE" envDefault:"code"`
	ResponseMode    string        `env:"RESPONSE_MODE"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	RequestTTL      time.Duration `env:"REQUEST_TTL" envDefault:"10m"`
	FetchUserInfo   bool          `env:"FETCH_USERINFO" envDefault:"true"`

	// Sessions
	SessionSecret   Secret        `env:"SESSION_SECRET"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookie   string        `env:"SESSION_COOKIE" envDefault:"rpgate"`
	SessionRedisURL Secret        `env:"SESSION_REDIS_URL"`

	// Server
	Port     int    `env:"PORT"`
	ForceSSL bool   `env:"FORCE_SSL"`
	KeyFile  string `env:"KEY" envDefault:"./https.key"`
	CertFile string `env:"CERT" envDefault:"./https.crt"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	provider *oidc.Config
}

// Load reads the optional dotenv files, parses the environment and validates
// the result.  Variables already present in the environment take precedence
// over the ones found in dotenv files.  Any problem is reported as a
// *ConfigurationError listing all of them.
//
// Supported options: WithEnvFiles, WithEnvironment
func Load(opt ...Option) (*Config, error) {
	const op = "config.Load"
	opts := getOpts(opt...)

	environ := opts.withEnvironment
	if environ == nil {
		environ = toMap(os.Environ())
	}
	vars, err := withDotEnv(environ, opts.withEnvFiles...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result *multierror.Error
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Environment: vars}); err != nil {
		var agg env.AggregateError
		switch {
		case errors.As(err, &agg):
			for _, e := range agg.Errors {
				result = multierror.Append(result, fmt.Errorf("%w: %s", ErrFailedToParseConfig, e))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrFailedToParseConfig, err))
		}
	}
	if err := c.Validate(); err != nil {
		var merr *multierror.Error
		switch {
		case errors.As(err, &merr):
			result = multierror.Append(result, merr.Errors...)
		default:
			result = multierror.Append(result, err)
		}
	}
	if result.ErrorOrNil() != nil {
		return nil, &ConfigurationError{Errors: result}
	}
	return c, nil
}

// Validate checks every value and builds the provider registry.  All
// problems are collected in a *multierror.Error.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	var result *multierror.Error
	missing := func(name string) {
		result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, name, ErrMissingValue))
	}
	invalid := func(name, format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%s: %s: %s: %w", op, name, fmt.Sprintf(format, args...), ErrInvalidValue))
	}

	providerReady := true
	for _, v := range []struct{ name, value string }{
		{"ISSUER", c.Issuer},
		{"AUTH_URL", c.AuthURL},
		{"TOKEN_URL", c.TokenURL},
		{"USER_URL", c.UserInfoURL},
		{"CERT_URL", c.JWKSURL},
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", string(c.ClientSecret)},
		{"CALLBACK_URL", c.CallbackURL},
	} {
		if strings.TrimSpace(v.value) == "" {
			missing(v.name)
			providerReady = false
		}
	}

	switch {
	case c.SessionSecret == "":
		missing("SESSION_SECRET")
	case len(c.SessionSecret) < session.MinSecretLength:
		invalid("SESSION_SECRET", "must be at least %d bytes", session.MinSecretLength)
	}
	if c.ResponseMode == oidc.ResponseModeFormPost && c.CallbackURL != "" &&
		!strings.HasPrefix(strings.ToLower(c.CallbackURL), "https://") {
		invalid("CALLBACK_URL", "response mode %q needs an https callback for its SameSite=None session cookie", oidc.ResponseModeFormPost)
	}
	if c.SessionTTL <= 0 {
		invalid("SESSION_TTL", "must be greater than zero")
	}
	if c.SessionCookie == "" {
		missing("SESSION_COOKIE")
	}
	if c.Port < 0 || c.Port > 65535 {
		invalid("PORT", "%d is out of range", c.Port)
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		invalid("LOG_LEVEL", "unknown level %q", c.LogLevel)
	}

	var ca string
	if c.ProviderCAFile != "" {
		pem, err := os.ReadFile(c.ProviderCAFile)
		if err != nil {
			invalid("PROVIDER_CA_FILE", "%s", err)
			providerReady = false
		}
		ca = string(pem)
	}

	if providerReady {
		algs := make([]oidc.Alg, 0, len(c.SigningAlgs))
		for _, a := range c.SigningAlgs {
			algs = append(algs, oidc.Alg(strings.TrimSpace(a)))
		}
		scopes := make([]string, 0, len(c.Scopes))
		for _, s := range c.Scopes {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
		opts := []oidc.Option{
			oidc.WithScopes(scopes...),
			oidc.WithResponseType(c.ResponseType),
			oidc.WithResponseMode(c.ResponseMode),
			oidc.WithRequestTTL(c.RequestTTL),
			oidc.WithProviderTimeout(c.ProviderTimeout),
			oidc.WithProviderCA(ca),
		}
		if !c.FetchUserInfo {
			opts = append(opts, oidc.WithoutUserInfo())
		}
		pc, err := oidc.NewConfig(
			oidc.Metadata{
				Issuer:               c.Issuer,
				AuthURL:              c.AuthURL,
				TokenURL:             c.TokenURL,
				UserInfoURL:          c.UserInfoURL,
				JWKSURL:              c.JWKSURL,
				SupportedSigningAlgs: algs,
			},
			oidc.Registration{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				RedirectURIs: []string{c.CallbackURL},
			},
			opts...,
		)
		if err != nil {
			var merr *multierror.Error
			switch {
			case errors.As(err, &merr):
				for _, e := range merr.Errors {
					result = multierror.Append(result, fmt.Errorf("%s: %w", op, e))
				}
			default:
				result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
			}
		}
		c.provider = pc
	}
	return result.ErrorOrNil()
}

// Provider returns the provider registry built by Validate, nil when the
// config is invalid.
func (c *Config) Provider() *oidc.Config {
	return c.provider
}

// TLSEnabled reports whether the server terminates TLS: FORCE_SSL is set and
// both the key and the certificate files exist.
func (c *Config) TLSEnabled() bool {
	return c.ForceSSL && fileExists(c.KeyFile) && fileExists(c.CertFile)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
		if c.TLSEnabled() {
			port = DefaultTLSPort
		}
	}
	return fmt.Sprintf(":%d", port)
}

// Level is the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() hclog.Level {
	if l := hclog.LevelFromString(c.LogLevel); l != hclog.NoLevel {
		return l
	}
	return hclog.Info
}

// CookieSameSite is the session cookie's SameSite mode.  A form_post
// response is a cross-site POST from the provider, which only carries
// SameSite=None cookies.
func (c *Config) CookieSameSite() http.SameSite {
	if c.ResponseMode == oidc.ResponseModeFormPost {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SessionOptions are the options shared by the session store and cookies.
func (c *Config) SessionOptions(logger hclog.Logger) []session.Option {
	return []session.Option{
		session.WithTTL(c.SessionTTL),
		session.WithCookieName(c.SessionCookie),
		session.WithSecure(c.TLSEnabled()),
		session.WithSameSite(c.CookieSameSite()),
		session.WithLogger(logger),
	}
}

// withDotEnv returns environ extended with the variables of the dotenv
// files which exist.  environ wins over the files, and earlier files win
// over later ones.
func withDotEnv(environ map[string]string, files ...string) (map[string]string, error) {
	const op = "config.withDotEnv"
	vars := make(map[string]string, len(environ))
	for k, v := range environ {
		vars[k] = v
	}
	for _, file := range files {
		if strings.HasPrefix(file, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("%s: unable to expand %q: %w", op, file, err)
			}
			file = strings.Replace(file, "~", home, 1)
		}
		if !fileExists(file) {
			continue
		}
		read, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read %q: %w", op, file, err)
		}
		for k, v := range read {
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
	}
	return vars, nil
}

func toMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}
