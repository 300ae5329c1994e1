// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for relying parties of OpenID Connect providers.  It covers
the provider registry (Config), authentication requests with their state and
nonce (Request), the authorization URL, the code exchange, id_token and
access_token verification and the user info request (Provider).

The provider's endpoints are configured, not discovered.  Every request made to
the provider is bounded by the config's ProviderTimeout.

TestProvider is an in-process provider for tests: it signs ES256 id_tokens and
serves the authorization, token, user info and key set endpoints.
*/
package oidc
