// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beringai/beringchat/services/chat/auth"
	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/beringai/beringchat/services/chat/middleware"
	"github.com/beringai/beringchat/services/chat/observability"
	"github.com/beringai/beringchat/services/chat/store"
)

// UserHandler serves the /user endpoints: account lifecycle and login.
type UserHandler struct {
	users  store.UserStore
	issuer *auth.Issuer
}

// NewUserHandler wires the user endpoints to the identity store and the
// token issuer.
func NewUserHandler(users store.UserStore, issuer *auth.Issuer) *UserHandler {
	return &UserHandler{users: users, issuer: issuer}
}

// publicUser strips the password digest from a stored record.
func publicUser(rec store.UserRecord) datatypes.User {
	return datatypes.User{
		Username: rec.Username,
		Email:    rec.Email,
		FullName: rec.FullName,
		Disabled: rec.Disabled,
	}
}

// Authenticate verifies a username/password pair against the store.
//
// Fails closed: unknown users and password mismatches both return
// ok=false rather than an error, so callers cannot distinguish the two.
func Authenticate(users store.UserStore, username, password string) (store.UserRecord, bool) {
	rec, err := users.Get(username)
	if err != nil {
		return store.UserRecord{}, false
	}
	if !auth.VerifyPassword(password, rec.PasswordDigest) {
		return store.UserRecord{}, false
	}
	return rec, true
}

// HandleSignup processes POST /user/signup.
//
// Creates a new account with a hashed password. Duplicate usernames are
// rejected with 400; the check-then-insert is atomic in the store, so
// concurrent signups for the same name resolve to one winner.
func (h *UserHandler) HandleSignup(c *gin.Context) {
	var req datatypes.SignupRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointUser, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	digest, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Password hashing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rec := store.UserRecord{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		PasswordDigest: digest,
		Disabled:       false,
	}
	if err := h.users.Create(rec); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
			return
		}
		slog.Error("User creation failed", "error", err, "user", req.Username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	slog.Info("User signed up", "user", req.Username)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointUser, true)
	}
	c.JSON(http.StatusOK, publicUser(rec))
}

// HandleLogin processes POST /user/token.
//
// Verifies credentials and returns a signed, time-limited session token
// with the username as subject. Bad credentials produce 401 with the
// bearer challenge; side channels do not reveal whether the username
// exists.
func (h *UserHandler) HandleLogin(c *gin.Context) {
	var req datatypes.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	rec, ok := Authenticate(h.users, req.Username, req.Password)
	if !ok {
		slog.Warn("Login rejected", "user", req.Username)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointUser, observability.ErrorCodeAuth)
		}
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
		return
	}

	token, err := h.issuer.Issue(rec.Username)
	if err != nil {
		slog.Error("Token issue failed", "error", err, "user", rec.Username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	slog.Info("User logged in", "user", rec.Username)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointUser, true)
	}
	c.JSON(http.StatusOK, datatypes.TokenResponse{
		Message:     "login successful",
		AccessToken: token,
		TokenType:   "bearer",
		Username:    rec.Username,
	})
}

// HandleLogout processes POST /user/logout.
//
// Tokens are stateless and carry their own expiry, so there is nothing
// to revoke server-side; this is an acknowledgment that tells the client
// to discard its token. Known limitation of the stateless design.
func (h *UserHandler) HandleLogout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"message":     "logout successful",
		"username":    user.Username,
		"logout_time": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleGetUser processes GET /user/get.
func (h *UserHandler) HandleGetUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, publicUser(user))
}

// HandleUpdateUser processes PUT /user/update. Only email and full name
// are mutable; omitted fields are left unchanged.
func (h *UserHandler) HandleUpdateUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req datatypes.UserUpdateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	updated, err := h.users.Update(user.Username, req.Email, req.FullName)
	if err != nil {
		slog.Error("User update failed", "error", err, "user", user.Username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, publicUser(updated))
}

// HandleDeleteUser processes DELETE /user/del.
//
// Soft delete only: the account is marked disabled and stays in the
// store. Subsequent requests with a still-valid token are rejected by
// the auth guard's active-account check.
func (h *UserHandler) HandleDeleteUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if _, err := h.users.SoftDelete(user.Username); err != nil {
		slog.Error("User soft delete failed", "error", err, "user", user.Username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	slog.Info("User soft-deleted", "user", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"message":      "user deleted",
		"deleted_user": user.Username,
		"deleted_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleListUsers processes GET /user/all. Returns every account,
// including disabled ones, without password digests.
func (h *UserHandler) HandleListUsers(c *gin.Context) {
	records := h.users.ListAll()
	users := make([]datatypes.User, 0, len(records))
	for _, rec := range records {
		users = append(users, publicUser(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  users,
		"total": len(users),
	})
}
