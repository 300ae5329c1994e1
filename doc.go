// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// rpgate is an OpenID Connect relying party gateway: it sends users to a
// provider to authenticate, validates the provider's response and binds the
// authenticated principal to a cookie session guarding protected routes.
//
// The packages, leaf first:
//
//	oidc       provider registry, requests, token exchange and verification
//	principal  the authenticated identity and its session encoding
//	session    session records, backends (memory, redis) and cookies
//	gateway    the authentication state machine
//	callback   the redirect URI's http handler
//	config     environment configuration
//	server     routes, access guard and request logging
//
// cmd/rpgate runs the gateway.
package rpgate
