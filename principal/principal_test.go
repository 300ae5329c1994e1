// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package principal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaims(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000000, 0).UTC()
	idClaims := map[string]interface{}{
		"iss":       "https://idp.example.com",
		"sub":       "alice",
		"aud":       "client",
		"nonce":     "n",
		"exp":       float64(1700000600),
		"name":      "Alice from id_token",
		"email":     "alice@example.com",
		"groups":    []interface{}{"admins"},
		"tenant":    "acme",
		"auth_time": float64(1699999000),
	}

	tests := []struct {
		name      string
		id        map[string]interface{}
		userInfo  map[string]interface{}
		want      *Principal
		wantIsErr error
	}{
		{
			name: "id-token-only",
			id:   idClaims,
			want: &Principal{
				Subject:         "alice",
				Issuer:          "https://idp.example.com",
				Name:            "Alice from id_token",
				Email:           "alice@example.com",
				AuthenticatedAt: time.Unix(1699999000, 0).UTC(),
				Extra: map[string]interface{}{
					"groups": []interface{}{"admins"},
					"tenant": "acme",
				},
			},
		},
		{
			name: "user-info-wins-for-profile",
			id:   idClaims,
			userInfo: map[string]interface{}{
				"sub":            "alice",
				"iss":            "https://not-the-issuer.example.com",
				"name":           "Alice Doe",
				"given_name":     "Alice",
				"email_verified": "true",
				"tenant":         "globex",
			},
			want: &Principal{
				Subject:         "alice",
				Issuer:          "https://idp.example.com",
				Name:            "Alice Doe",
				GivenName:       "Alice",
				Email:           "alice@example.com",
				EmailVerified:   true,
				AuthenticatedAt: time.Unix(1699999000, 0).UTC(),
				Extra: map[string]interface{}{
					"groups": []interface{}{"admins"},
					"tenant": "globex",
				},
			},
		},
		{
			name: "no-auth-time",
			id:   map[string]interface{}{"iss": "https://idp.example.com", "sub": "bob"},
			want: &Principal{
				Subject:         "bob",
				Issuer:          "https://idp.example.com",
				AuthenticatedAt: now,
			},
		},
		{
			name:      "missing-sub",
			id:        map[string]interface{}{"iss": "https://idp.example.com"},
			wantIsErr: ErrInvalidPrincipal,
		},
		{
			name:      "missing-iss",
			id:        map[string]interface{}{"sub": "bob"},
			wantIsErr: ErrInvalidPrincipal,
		},
		{
			name:      "non-string-sub",
			id:        map[string]interface{}{"iss": "https://idp.example.com", "sub": float64(42)},
			wantIsErr: ErrInvalidPrincipal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := FromClaims(tt.id, tt.userInfo, now)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestPrincipal_Validate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	var p *Principal
	assert.ErrorIs(p.Validate(), ErrInvalidPrincipal)
	assert.ErrorIs((&Principal{Issuer: "iss"}).Validate(), ErrInvalidPrincipal)
	assert.ErrorIs((&Principal{Subject: "sub"}).Validate(), ErrInvalidPrincipal)
	assert.NoError((&Principal{Subject: "sub", Issuer: "iss"}).Validate())
}
