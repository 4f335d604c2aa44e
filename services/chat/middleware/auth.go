// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the chat service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, verifies it with the token issuer, resolves the subject in the
// user store, and stores the active user record in the gin context for
// downstream handlers.
//
//	Request
//	   │
//	   ▼
//	RequireUser
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► issuer.Verify(token) → subject
//	   │
//	   ├─► users.Get(subject), reject disabled accounts
//	   │
//	   └─► Store UserRecord in context
//	           │
//	           ▼
//	       Handler (retrieves via CurrentUser)
//
// Token, signature, expiry, and unknown-subject failures all produce 401
// with a WWW-Authenticate: Bearer hint. Disabled accounts are a valid
// identity presenting itself, so they get 400 instead.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/beringai/beringchat/services/chat/auth"
	"github.com/beringai/beringchat/services/chat/store"
	"github.com/gin-gonic/gin"
)

// currentUserKey is the context key for the authenticated user record.
const currentUserKey = "bering_current_user"

// CurrentUser retrieves the authenticated user from the gin context.
// Returns false if RequireUser did not run or rejected the request.
func CurrentUser(c *gin.Context) (store.UserRecord, bool) {
	if v, exists := c.Get(currentUserKey); exists {
		if rec, ok := v.(store.UserRecord); ok {
			return rec, true
		}
	}
	return store.UserRecord{}, false
}

// RequireUser creates a gin middleware guarding protected routes.
//
// # Description
//
// Runs the full resolve-current-user chain: bearer extraction, token
// verification, subject lookup, and the active-account check. Handlers
// behind this middleware can call CurrentUser without further checks.
//
// # Inputs
//
//   - issuer: Token verifier. Must not be nil.
//   - users: Identity store. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with gin groups.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireUser(issuer *auth.Issuer, users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		subject, err := issuer.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				unauthorized(c, "token expired")
				return
			}
			unauthorized(c, "token verification failed")
			return
		}

		rec, err := users.Get(subject)
		if err != nil {
			// A valid signature over an unknown subject gets the same
			// response as a bad token; no user enumeration.
			unauthorized(c, "token verification failed")
			return
		}

		if rec.Disabled {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user"})
			return
		}

		c.Set(currentUserKey, rec)
		c.Next()
	}
}

// unauthorized aborts with 401 and the standard bearer challenge.
func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// extractBearerToken extracts the token from the Authorization header.
// The "Bearer" prefix is case-insensitive per RFC 7235; returns empty
// string if the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
