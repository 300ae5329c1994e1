// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/rpgate/gateway"
	"github.com/stretchr/testify/assert"
)

func TestReadParams(t *testing.T) {
	t.Parallel()
	t.Run("body-wins-over-query", func(t *testing.T) {
		assert := assert.New(t)
		form := url.Values{"state": {"from-body"}, "code": {"c"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/callback?state=from-query", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(gateway.CallbackParams{State: "from-body", Code: "c"}, ReadParams(req))
	})
	t.Run("empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
		assert.Equal(t, gateway.CallbackParams{}, ReadParams(req))
	})
}
