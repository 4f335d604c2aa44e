// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id. Incoming values
// are trusted and propagated; absent ones get a fresh UUID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the context key for the correlation id.
const requestIDKey = "bering_request_id"

// RequestID retrieves the correlation id set by the RequestID middleware.
// Empty if the middleware did not run.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestIDMiddleware assigns every request a correlation id, echoed back in the
// response header so clients and log pipelines can join both sides of
// an exchange.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
