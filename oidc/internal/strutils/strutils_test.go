// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package strutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrutil_ListContains(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	haystack := []string{
		"openid",
		"profile",
		"email",
	}
	require.False(StrListContains(haystack, "offline_access"))
	require.True(StrListContains(haystack, "email"))
	require.False(StrListContains(nil, "openid"))
}

func TestStrUtil_RemoveDuplicatesStable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		input           []string
		want            []string
		caseInsensitive bool
	}{
		{"empty", []string{}, []string{}, false},
		{"empty-insensitive", []string{}, []string{}, true},
		{"dup", []string{"openid", "email", "openid"}, []string{"openid", "email"}, false},
		{"case-sensitive", []string{"OpenID", "email", "openid"}, []string{"OpenID", "email", "openid"}, false},
		{"case-insensitive", []string{"OpenID", "email", "openid"}, []string{"OpenID", "email"}, true},
		{"blank", []string{" ", "profile", "openid", "profile"}, []string{"profile", "openid"}, false},
		{"whitespace", []string{"Z ", " z", " z ", "y"}, []string{"Z ", "y"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, RemoveDuplicatesStable(tt.input, tt.caseInsensitive))
		})
	}
}
