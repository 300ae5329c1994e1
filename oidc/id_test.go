// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		opt         []Option
		wantErr     bool
		wantIsErr   error
		wantPrefix  string
		wantEntropy int
	}{
		{
			name:        "no-prefix",
			wantEntropy: DefaultIDEntropy,
		},
		{
			name:        "with-prefix",
			opt:         []Option{WithPrefix("alice")},
			wantPrefix:  "alice_",
			wantEntropy: DefaultIDEntropy,
		},
		{
			name:        "min-entropy",
			opt:         []Option{WithEntropy(MinIDEntropy)},
			wantEntropy: MinIDEntropy,
		},
		{
			name:      "too-little-entropy",
			opt:       []Option{WithEntropy(MinIDEntropy - 1)},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewID(tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			if tt.wantPrefix != "" {
				assert.Truef(strings.HasPrefix(got, tt.wantPrefix), "NewID() = %v and wanted prefix %s", got, tt.wantPrefix)
			}
			raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(got, tt.wantPrefix))
			require.NoError(err)
			assert.Len(raw, tt.wantEntropy)
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id, err := NewID()
		require.NoError(err)
		_, dup := seen[id]
		require.Falsef(dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func Test_WithPrefix(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getIDOpts(WithPrefix("alice"))
	testOpts := idDefaults()
	testOpts.withPrefix = "alice"
	assert.Equal(opts, testOpts)
}
