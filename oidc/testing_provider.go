// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/rpgate/oidc/internal/strutils"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local TLS server that supports test provider capabilities
// which make writing tests much easier.  It serves an authorization endpoint
// (/authorize), a token endpoint (/token), a JWKS (/certs) and a user info
// endpoint (/userinfo).  Its id_tokens are signed with ES256.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	jwks       *jose.JSONWebKeySet

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	expectedAuthCode    string
	codes               map[string]string // code -> nonce
	accessTokens        map[string]struct{}
	replySubject        string
	replyUserinfo       map[string]interface{}
	userInfoSubject     string
	customClaims        map[string]interface{}
	customAudience      string
	idTokenNonce        string
	authError           *AuthenErrorResponse
	omitIDToken         bool
	disableUserInfo     bool
	tokenDelay          time.Duration
	tokenRequests       int
	userInfoRequests    int
}

// Test defaults.
const (
	TestClientID     = "test-client-id"
	TestClientSecret = "test-client-secret"
	TestRedirectURI  = "https://example.com/auth/callback"
	TestSubject      = "r3qXcK2bix9eFECzsU3Sbmh0K16fatW6@clients"
)

// StartTestProvider creates a disposable TestProvider listening on a random
// local port.  It's stopped when the test and all its subtests complete.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:                   t,
		clientID:            TestClientID,
		clientSecret:        TestClientSecret,
		allowedRedirectURIs: []string{TestRedirectURI},
		codes:               map[string]string{},
		accessTokens:        map[string]struct{}{},
		replySubject:        TestSubject,
		replyUserinfo: map[string]interface{}{
			"name":           "Alice Doe",
			"given_name":     "Alice",
			"family_name":    "Doe",
			"email":          "alice@example.com",
			"email_verified": true,
			"flavor":         "umami",
		},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// ClientCreds returns the client information the provider accepts.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// SetExpectedAuthCode configures the auth code returned from /authorize.  By
// default a random code is issued for every authorization.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs configures the redirect URIs accepted by /authorize
// and /token.  If not configured TestRedirectURI is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetCustomClaims lets you set claims to return in the id_token issued by
// the provider.  They override the standard claims.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures what audience value to embed in the id_token.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// SetIDTokenNonce forces the nonce embedded in issued id_tokens, instead of
// the one received by /authorize.
func (p *TestProvider) SetIDTokenNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenNonce = nonce
}

// SetUserInfoSubject forces the "sub" returned by /userinfo.
func (p *TestProvider) SetUserInfoSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoSubject = sub
}

// SetUserInfoReply configures the claims returned by /userinfo in addition
// to "sub".
func (p *TestProvider) SetUserInfoReply(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// SetAuthError makes /authorize redirect back with an error response.
func (p *TestProvider) SetAuthError(r *AuthenErrorResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = r
}

// SetTokenDelay delays every /token response.
func (p *TestProvider) SetTokenDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenDelay = d
}

// OmitIDTokens forces an error state where the /token endpoint does not return
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableUserInfo makes the userinfo endpoint return 404.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// TokenRequests returns the number of requests received by /token.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// UserInfoRequests returns the number of requests received by /userinfo.
func (p *TestProvider) UserInfoRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userInfoRequests
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// HTTPClient returns an http client which trusts the provider's CA and
// doesn't follow redirects.
func (p *TestProvider) HTTPClient() *http.Client {
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM([]byte(p.caCert))
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

// Authorize plays the user agent: it follows the authURL to the provider's
// authorization endpoint and returns the parameters of the redirect back to
// the relying party.
func (p *TestProvider) Authorize(t *testing.T, authURL string) url.Values {
	t.Helper()
	require := require.New(t)
	resp, err := p.HTTPClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	return loc.Query()
}

// IssueIDToken signs an id_token for the provider's subject and client with
// the nonce.  When accessToken isn't empty, its at_hash is embedded and it's
// accepted by /userinfo.
func (p *TestProvider) IssueIDToken(nonce, accessToken string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueIDToken(nonce, accessToken)
}

// issueIDToken requires the lock to be held.
func (p *TestProvider) issueIDToken(nonce, accessToken string) string {
	now := time.Now()
	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.Addr(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(time.Minute)),
		Audience:  jwt.Audience{p.clientID},
	}
	if p.customAudience != "" {
		stdClaims.Audience = jwt.Audience{p.customAudience}
	}
	if p.idTokenNonce != "" {
		nonce = p.idTokenNonce
	}
	privateClaims := map[string]interface{}{
		"nonce": nonce,
	}
	if accessToken != "" {
		privateClaims["at_hash"] = TestAccessTokenHash(accessToken)
		p.accessTokens[accessToken] = struct{}{}
	}
	for k, v := range p.customClaims {
		privateClaims[k] = v
	}
	return TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, privateClaims)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	v := url.Values{}
	v.Set("state", qv.Get("state"))
	v.Set("error", errorCode)
	if errorMessage != "" {
		v.Set("error_description", errorMessage)
	}
	http.Redirect(w, req, appendQuery(qv.Get("redirect_uri"), v), http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/authorize":
		p.handleAuthorize(w, req)
	case "/token":
		p.handleToken(w, req)
	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)
	case "/userinfo":
		p.handleUserInfo(w, req)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
		// never redirect to an unknown uri
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch {
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client_id")
		return
	case qv.Get("response_type") != ResponseTypeCode:
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	case !strutils.StrListContains(strings.Fields(qv.Get("scope")), ScopeOpenID):
		p.writeAuthErrorResponse(w, req, "invalid_scope", "")
		return
	case qv.Get("state") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	case qv.Get("nonce") == "":
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing nonce parameter")
		return
	case p.authError != nil:
		p.writeAuthErrorResponse(w, req, p.authError.Error, p.authError.Description)
		return
	}

	code := p.expectedAuthCode
	if code == "" {
		var err error
		if code, err = NewID(); err != nil {
			p.writeAuthErrorResponse(w, req, "server_error", err.Error())
			return
		}
	}
	p.codes[code] = qv.Get("nonce")

	v := url.Values{}
	v.Set("state", qv.Get("state"))
	v.Set("code", code)
	http.Redirect(w, req, appendQuery(redirectURI, v), http.StatusFound)
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p.mu.Lock()
	p.tokenRequests++
	delay := p.tokenDelay
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	clientID, clientSecret, ok := req.BasicAuth()
	if !ok {
		clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
	} else {
		clientID, _ = url.QueryUnescape(clientID)
		clientSecret, _ = url.QueryUnescape(clientSecret)
	}
	nonce, knownCode := p.codes[req.FormValue("code")]
	switch {
	case clientID != p.clientID || clientSecret != p.clientSecret:
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
		return
	case req.FormValue("grant_type") != "authorization_code":
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
		return
	case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		return
	case !knownCode:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	}
	delete(p.codes, req.FormValue("code"))

	accessToken, err := NewID()
	if err != nil {
		p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	reply := struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		IDToken     string `json:"id_token,omitempty"`
	}{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   60,
		IDToken:     p.issueIDToken(nonce, accessToken),
	}
	if p.omitIDToken {
		reply.IDToken = ""
	}
	_ = p.writeJSON(w, &reply)
}

func (p *TestProvider) handleUserInfo(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoRequests++
	if p.disableUserInfo {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := p.accessTokens[strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")]; !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	reply := map[string]interface{}{}
	for k, v := range p.replyUserinfo {
		reply[k] = v
	}
	reply["sub"] = p.replySubject
	if p.userInfoSubject != "" {
		reply["sub"] = p.userInfoSubject
	}
	_ = p.writeJSON(w, reply)
}

// appendQuery adds v to the query of the uri, keeping its existing
// parameters.
func appendQuery(uri string, v url.Values) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	for k, vals := range v {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     "test-key",
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}
