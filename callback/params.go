// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/rpgate/gateway"
)

// ReadParams reads the authentication response parameters from either the
// body or query parameters. FormValue prioritizes body values, if found.
func ReadParams(req *http.Request) gateway.CallbackParams {
	return gateway.CallbackParams{
		State:            req.FormValue("state"),
		Code:             req.FormValue("code"),
		IDToken:          req.FormValue("id_token"),
		AccessToken:      req.FormValue("access_token"),
		Error:            req.FormValue("error"),
		ErrorDescription: req.FormValue("error_description"),
		ErrorURI:         req.FormValue("error_uri"),
	}
}
