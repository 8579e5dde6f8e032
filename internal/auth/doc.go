// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package auth turns email/password pairs into signed session tokens.
//
// # Credentials
//
// A stored credential is either a bcrypt hash ("$2" prefix) or a legacy
// plaintext password. CredentialEngine verifies both and proposes a bcrypt
// replacement whenever a legacy credential matches; Service persists the
// replacement so every account converges on the hashed format after one
// successful login.
//
// # Sessions
//
// TokenIssuer signs {userId, email} claims with HS256 and a fixed TTL.
// PackageCookie renders the token as the "token" session cookie.
//
// # Services
//
// Service orchestrates Login, Signup and Session against a StoreProvider.
// Every failure it returns wraps one of the taxonomy sentinels (see
// ErrorCode), so transports can map errors without inspecting messages.
package auth
