// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSecret_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedClientSecret
		secret := ClientSecret("bob's phone number")
		assert.Equalf(want, secret.String(), "ClientSecret.String() = %v, want %v", secret.String(), want)
		assert.NotContains(fmt.Sprintf("%v", Registration{ClientSecret: secret}), "phone")
	})
}

func testMetadata() Metadata {
	return Metadata{
		Issuer:      "https://YOUR_ISSUER/",
		AuthURL:     "https://YOUR_ISSUER/authorize",
		TokenURL:    "https://YOUR_ISSUER/token",
		UserInfoURL: "https://YOUR_ISSUER/userinfo",
		JWKSURL:     "https://YOUR_ISSUER/certs",
	}
}

func testRegistration() Registration {
	return Registration{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
		RedirectURIs: []string{"https://YOUR_REDIRECT_URL/callback"},
	}
}

func TestNewConfig_Validation(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})

	tests := []struct {
		name      string
		metadata  func(m *Metadata)
		reg       func(r *Registration)
		opt       []Option
		want      func(c *Config)
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "defaults",
			want: func(c *Config) {},
		},
		{
			name: "valid-with-all-valid-opts",
			metadata: func(m *Metadata) {
				m.SupportedSigningAlgs = []Alg{RS512, ES256}
			},
			opt: []Option{
				WithScopes("email", "profile", "email"),
				WithResponseType("code id_token"),
				WithResponseMode("form_post"),
				WithRequestTTL(time.Minute),
				WithProviderTimeout(time.Second),
				WithoutUserInfo(),
				WithProviderCA(testCaPem),
			},
			want: func(c *Config) {
				c.SupportedSigningAlgs = []Alg{RS512, ES256}
				c.Scopes = []string{ScopeOpenID, "email", "profile"}
				c.ResponseType = "code id_token"
				c.ResponseMode = "form_post"
				c.RequestTTL = time.Minute
				c.ProviderTimeout = time.Second
				c.FetchUserInfo = false
				c.ProviderCA = testCaPem
			},
		},
		{
			name: "openid-scope-not-duplicated",
			opt:  []Option{WithScopes("profile", ScopeOpenID)},
			want: func(c *Config) {
				c.Scopes = []string{ScopeOpenID, "profile"}
			},
		},
		{
			name:      "empty-issuer",
			metadata:  func(m *Metadata) { m.Issuer = "" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "bad-issuer-scheme",
			metadata:  func(m *Metadata) { m.Issuer = "ldap://bad-scheme" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "empty-token-endpoint",
			metadata:  func(m *Metadata) { m.TokenURL = "" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "bad-jwks-url",
			metadata:  func(m *Metadata) { m.JWKSURL = "http://bad-url\\" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "empty-client-id",
			reg:       func(r *Registration) { r.ClientID = "" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "empty-client-secret",
			reg:       func(r *Registration) { r.ClientSecret = "" },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "empty-redirect",
			reg:       func(r *Registration) { r.RedirectURIs = nil },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "invalid-alg",
			metadata:  func(m *Metadata) { m.SupportedSigningAlgs = []Alg{"bad alg"} },
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "invalid-response-type",
			opt:       []Option{WithResponseType("token")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "invalid-response-mode",
			opt:       []Option{WithResponseMode("smoke-signals")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "tokens-without-form-post",
			opt:       []Option{WithResponseType("id_token")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "tokens-in-query",
			opt:       []Option{WithResponseType("code id_token"), WithResponseMode("query")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "tokens-in-fragment",
			opt:       []Option{WithResponseType("id_token token"), WithResponseMode("fragment")},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "zero-request-ttl",
			opt:       []Option{WithRequestTTL(0)},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "invalid-providerCA",
			opt:       []Option{WithProviderCA("bad certificate")},
			wantErr:   true,
			wantIsErr: ErrInvalidCACert,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			m, r := testMetadata(), testRegistration()
			if tt.metadata != nil {
				tt.metadata(&m)
			}
			if tt.reg != nil {
				tt.reg(&r)
			}
			got, err := NewConfig(m, r, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)

			want := &Config{
				Metadata:        testMetadata(),
				Registration:    testRegistration(),
				Scopes:          []string{ScopeOpenID},
				ResponseType:    ResponseTypeCode,
				RequestTTL:      DefaultRequestTTL,
				ProviderTimeout: DefaultProviderTimeout,
				FetchUserInfo:   true,
			}
			want.SupportedSigningAlgs = []Alg{RS256}
			tt.want(want)
			assert.Equal(want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	t.Run("nil-config", func(t *testing.T) {
		assert := assert.New(t)
		var c *Config
		err := c.Validate()
		assert.Truef(errors.Is(err, ErrNilParameter), "Config.Validate() = %v, want %v", err, ErrNilParameter)
	})
	t.Run("every-problem-reported", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{
			Scopes:          []string{ScopeOpenID},
			ResponseType:    ResponseTypeCode,
			RequestTTL:      DefaultRequestTTL,
			ProviderTimeout: DefaultProviderTimeout,
		}
		c.SupportedSigningAlgs = []Alg{RS256}
		err := c.Validate()
		require.Error(err)
		var merr *multierror.Error
		require.True(errors.As(err, &merr))
		// issuer, 4 endpoints, client id, client secret, redirect URIs
		assert.Len(merr.Errors, 8)
		for _, e := range merr.Errors {
			assert.ErrorIs(e, ErrInvalidParameter)
		}
	})
	t.Run("missing-openid-scope", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig(testMetadata(), testRegistration())
		require.NoError(err)
		c.Scopes = []string{"profile"}
		assert.ErrorIs(c.Validate(), ErrInvalidParameter)
	})
}

func TestConfig_RedirectURI(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := &Config{}
	assert.Empty(c.RedirectURI())
	c.RedirectURIs = []string{"https://one/cb", "https://two/cb"}
	assert.Equal("https://one/cb", c.RedirectURI())
}

func TestConfig_HTTPClient(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})
	t.Run("with-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{ProviderCA: testCaPem, ProviderTimeout: 3 * time.Second}
		client, err := c.HTTPClient()
		require.NoError(err)
		assert.Equal(3*time.Second, client.Timeout)
	})
	t.Run("bad-ca", func(t *testing.T) {
		assert := assert.New(t)
		c := &Config{ProviderCA: "bad certificate"}
		_, err := c.HTTPClient()
		assert.ErrorIs(err, ErrInvalidCACert)
	})
}

func Test_WithProviderCA(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})
	assert := assert.New(t)
	opts := getConfigOpts(WithProviderCA(testCaPem))
	testOpts := configDefaults()
	testOpts.withProviderCA = testCaPem
	assert.Equal(opts, testOpts)
}

func Test_WithResponseType(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getConfigOpts(WithResponseType(""))
	assert.Equal(configDefaults(), opts)

	opts = getConfigOpts(WithResponseType("id_token"))
	testOpts := configDefaults()
	testOpts.withResponseType = "id_token"
	assert.Equal(testOpts, opts)

	reqOpts := getReqOpts(WithResponseType("id_token"), WithResponseMode("form_post"))
	assert.Equal("id_token", reqOpts.withResponseType)
	assert.Equal("form_post", reqOpts.withResponseMode)
}

func TestConfig_Now(t *testing.T) {
	tests := []struct {
		name    string
		nowFunc func() time.Time
		want    func() time.Time
		skew    time.Duration
	}{
		{
			name:    "default-time",
			nowFunc: nil,
			want:    time.Now,
			skew:    1 * time.Millisecond,
		},
		{
			name:    "time-travel-backward",
			nowFunc: func() time.Time { return time.Now().Add(-10 * time.Millisecond) },
			want:    func() time.Time { return time.Now().Add(-10 * time.Millisecond) },
			skew:    1 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			c := &Config{NowFunc: tt.nowFunc}
			assert.True(c.Now().Before(tt.want().Add(tt.skew)))
			assert.True(c.Now().Add(tt.skew).After(tt.want()))
		})
	}
}
