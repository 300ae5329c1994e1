// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/rpgate/gateway"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(p *principal.Principal, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful: " + p.Subject))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(state string, r *oidc.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	if r != nil {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(r)
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&oidc.AuthenErrorResponse{
		Error:       "internal-callback-error",
		Description: e.Error(),
	})
	_, _ = w.Write(j)
}

// testCompleter records the parameters it's called with.
type testCompleter struct {
	sessionID string
	params    gateway.CallbackParams
	p         *principal.Principal
	err       error
}

func (c *testCompleter) CompleteAuth(_ context.Context, sessionID string, params gateway.CallbackParams) (*principal.Principal, error) {
	c.sessionID, c.params = sessionID, params
	return c.p, c.err
}

// testSessionReader returns a fixed session id, none when empty.
type testSessionReader string

func (s testSessionReader) SessionID(*http.Request) (string, bool) {
	return string(s), s != ""
}
