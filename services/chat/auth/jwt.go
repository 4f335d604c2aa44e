// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth implements the session token service and password hashing
// for the chat service.
//
// Tokens are stateless signed JWTs carrying the username as subject and
// a fixed expiry. There is no server-side revocation list: a token is
// valid iff its signature checks out and it has not expired. Logout is
// therefore a client-side operation the server merely acknowledges.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, malformed payloads, and
	// tokens signed with an unexpected algorithm.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for structurally valid tokens whose
	// expiry has passed. Kept distinct from ErrInvalidToken for
	// diagnostics; both map to 401 at the HTTP boundary.
	ErrExpiredToken = errors.New("token expired")
)

// signingMethods maps the configured algorithm name to a jwt method.
// Only the HMAC family is supported; the secret is a shared process key.
var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// Issuer mints and verifies session tokens.
//
// The zero value is not usable; construct with NewIssuer. Issuer is
// stateless and safe for concurrent use.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer.
//
// # Inputs
//
//   - secret: HMAC signing key. Must not be empty.
//   - algorithm: "HS256", "HS384", or "HS512".
//   - ttl: Token lifetime. Values <= 0 fall back to 30 minutes.
//
// # Outputs
//
//   - *Issuer: Ready to issue and verify tokens.
//   - error: Non-nil if the secret is empty or the algorithm is unknown.
func NewIssuer(secret []byte, algorithm string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for the given subject (username).
//
// The expiry is issue time plus the configured TTL. Tokens are never
// renewed automatically.
func (i *Issuer) Issue(subject string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(i.method, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its subject.
//
// # Outputs
//
//   - string: The subject embedded at issue time.
//   - error: ErrExpiredToken for expired tokens, ErrInvalidToken for
//     everything else (bad signature, malformed payload, wrong
//     algorithm, empty subject).
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			// Pin the signing method so a token signed with "none" or an
			// asymmetric algorithm cannot pass with the HMAC secret as key.
			if t.Method.Alg() != i.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return i.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
