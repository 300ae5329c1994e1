// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides callbacks (in the form of http.HandlerFunc)
for handling OIDC provider responses to authentication attempts: authorization
code, tokens returned from the authorization endpoint and error responses, sent
either as query parameters or as a form post.
*/
package callback
