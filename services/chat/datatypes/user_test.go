// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestSignupRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SignupRequest
		wantErr bool
	}{
		{
			name: "minimal valid",
			req:  SignupRequest{Username: "alice", Password: "secret"},
		},
		{
			name: "full valid",
			req: SignupRequest{
				Username: "alice",
				Password: "secret",
				Email:    "alice@example.com",
				FullName: "Alice Liddell",
			},
		},
		{
			name:    "missing username",
			req:     SignupRequest{Password: "secret"},
			wantErr: true,
		},
		{
			name:    "missing password",
			req:     SignupRequest{Username: "alice"},
			wantErr: true,
		},
		{
			name:    "username too long",
			req:     SignupRequest{Username: strings.Repeat("a", 65), Password: "secret"},
			wantErr: true,
		},
		{
			name:    "bad email",
			req:     SignupRequest{Username: "alice", Password: "secret", Email: "not-an-email"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Username: "alice", Password: "secret"}).Validate())
	assert.Error(t, (&LoginRequest{Username: "alice"}).Validate())
	assert.Error(t, (&LoginRequest{Password: "secret"}).Validate())
}

func TestUserUpdateRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UserUpdateRequest{}).Validate(), "all fields optional")
	assert.NoError(t, (&UserUpdateRequest{Email: strPtr("alice@example.com")}).Validate())
	assert.NoError(t, (&UserUpdateRequest{FullName: strPtr("Alice")}).Validate())
	assert.Error(t, (&UserUpdateRequest{Email: strPtr("bogus")}).Validate())
}
