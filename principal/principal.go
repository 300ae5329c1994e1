// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package principal

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidPrincipal is returned when a principal is missing its subject or
// issuer.
var ErrInvalidPrincipal = errors.New("invalid principal")

// Principal is the authenticated identity bound to a session.  A principal is
// identified by its Issuer and Subject, the other fields are optional
// profile claims.
type Principal struct {
	Subject string `msgpack:"sub" json:"sub"`
	Issuer  string `msgpack:"iss" json:"iss"`

	Name              string `msgpack:"name,omitempty" json:"name,omitempty"`
	GivenName         string `msgpack:"given_name,omitempty" json:"given_name,omitempty"`
	FamilyName        string `msgpack:"family_name,omitempty" json:"family_name,omitempty"`
	PreferredUsername string `msgpack:"preferred_username,omitempty" json:"preferred_username,omitempty"`
	Email             string `msgpack:"email,omitempty" json:"email,omitempty"`
	EmailVerified     bool   `msgpack:"email_verified,omitempty" json:"email_verified,omitempty"`
	Picture           string `msgpack:"picture,omitempty" json:"picture,omitempty"`
	Locale            string `msgpack:"locale,omitempty" json:"locale,omitempty"`

	// AuthenticatedAt is when the user authenticated with the provider: the
	// id_token's auth_time or, when absent, when the principal was created.
	AuthenticatedAt time.Time `msgpack:"auth_time" json:"auth_time"`

	// Extra holds extension claims not mapped to a field.
	Extra map[string]interface{} `msgpack:"extra,omitempty" json:"extra,omitempty"`
}

// Validate returns an error wrapping ErrInvalidPrincipal when the subject or
// issuer is missing.
func (p *Principal) Validate() error {
	const op = "Principal.Validate"
	switch {
	case p == nil:
		return fmt.Errorf("%s: principal is nil: %w", op, ErrInvalidPrincipal)
	case p.Subject == "":
		return fmt.Errorf("%s: subject is empty: %w", op, ErrInvalidPrincipal)
	case p.Issuer == "":
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidPrincipal)
	}
	return nil
}

// registeredClaims are never copied into Extra: they're token mechanics or
// mapped to a Principal field.
var registeredClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
	"nonce": {}, "at_hash": {}, "c_hash": {}, "azp": {}, "auth_time": {},
	"acr": {}, "amr": {}, "sid": {},
	"name": {}, "given_name": {}, "family_name": {}, "preferred_username": {},
	"email": {}, "email_verified": {}, "picture": {}, "locale": {},
}

// FromClaims builds a Principal from verified id_token claims and optional
// user info claims.  The subject and issuer always come from the id_token,
// user info claims take precedence for profile claims.  now is used when the
// id_token has no auth_time.
func FromClaims(idTokenClaims, userInfoClaims map[string]interface{}, now time.Time) (*Principal, error) {
	const op = "principal.FromClaims"
	p := &Principal{
		Subject: claimString(idTokenClaims, "sub"),
		Issuer:  claimString(idTokenClaims, "iss"),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.AuthenticatedAt = now.UTC()
	if at, ok := idTokenClaims["auth_time"].(float64); ok && at > 0 {
		p.AuthenticatedAt = time.Unix(int64(at), 0).UTC()
	}

	for _, claims := range []map[string]interface{}{idTokenClaims, userInfoClaims} {
		for k, v := range claims {
			if _, ok := registeredClaims[k]; ok {
				continue
			}
			if p.Extra == nil {
				p.Extra = map[string]interface{}{}
			}
			p.Extra[k] = v
		}
		setString(&p.Name, claims, "name")
		setString(&p.GivenName, claims, "given_name")
		setString(&p.FamilyName, claims, "family_name")
		setString(&p.PreferredUsername, claims, "preferred_username")
		setString(&p.Email, claims, "email")
		setString(&p.Picture, claims, "picture")
		setString(&p.Locale, claims, "locale")
		if v, ok := claimBool(claims, "email_verified"); ok {
			p.EmailVerified = v
		}
	}
	return p, nil
}

func claimString(claims map[string]interface{}, name string) string {
	s, _ := claims[name].(string)
	return s
}

func setString(dst *string, claims map[string]interface{}, name string) {
	if s := claimString(claims, name); s != "" {
		*dst = s
	}
}

// claimBool supports providers sending booleans as strings.
func claimBool(claims map[string]interface{}, name string) (bool, bool) {
	switch v := claims[name].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}
