// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "github.com/go-playground/validator/v10"

// userValidate is the validator instance for user datatypes.
var userValidate = validator.New()

// =============================================================================
// User Request Types
// =============================================================================

// SignupRequest is the body of POST /user/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=256"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	FullName string `json:"full_name,omitempty" validate:"omitempty,max=256"`
}

// Validate validates the SignupRequest fields.
func (r *SignupRequest) Validate() error {
	return userValidate.Struct(r)
}

// LoginRequest is the body of POST /user/token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the LoginRequest fields.
func (r *LoginRequest) Validate() error {
	return userValidate.Struct(r)
}

// UserUpdateRequest is the body of PUT /user/update. Nil fields are
// left unchanged.
type UserUpdateRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=256"`
}

// Validate validates the UserUpdateRequest fields.
func (r *UserUpdateRequest) Validate() error {
	return userValidate.Struct(r)
}

// =============================================================================
// User Response Types
// =============================================================================

// User is the public view of an account; it never carries the password
// digest.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Disabled bool   `json:"disabled"`
}

// TokenResponse is the body returned by POST /user/token on success.
type TokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}
