// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie the web application reads the session from.
const SessionCookieName = "token"

// PackageCookie renders token as a Set-Cookie header value: HttpOnly,
// SameSite=Lax, path /, Max-Age of ttl, and Secure when secure is set.
func PackageCookie(token string, ttl time.Duration, secure bool) string {
	c := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}
