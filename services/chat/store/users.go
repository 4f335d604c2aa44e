// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store holds the mutable process-wide state of the chat service:
// the user records and the per-user conversation logs.
//
// Both stores are in-memory and lost on restart. That is a documented
// property of the service, not an accident; the interfaces exist so a
// persistent backend can be swapped in without touching the handlers.
package store

import (
	"errors"
	"sync"
)

var (
	// ErrUserExists is returned by Create when the username is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned when an operation targets an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// UserRecord is a stored user. Accounts are never hard-deleted; deletion
// sets Disabled and the record remains enumerable.
type UserRecord struct {
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	PasswordDigest string `json:"-"`
	Disabled       bool   `json:"disabled"`
}

// UserStore is the identity store adapter: pure single-key data access,
// no business logic.
//
// # Thread Safety
//
// Implementations must serialize read-modify-write sequences on the same
// key. Concurrent signups for one username must resolve to exactly one
// winner (Create is atomic check-then-insert).
type UserStore interface {
	// Get returns the record for username, or ErrUserNotFound.
	Get(username string) (UserRecord, error)

	// Create inserts a new record; fails with ErrUserExists if the
	// username is already present (disabled records count as present).
	Create(rec UserRecord) error

	// Save upserts the record by username.
	Save(rec UserRecord)

	// Update changes email and/or full name for an existing user.
	// Nil pointers leave the corresponding field untouched.
	Update(username string, email, fullName *string) (UserRecord, error)

	// SoftDelete marks the user disabled. The record stays in the store.
	SoftDelete(username string) (UserRecord, error)

	// ListAll returns every record, including disabled ones.
	ListAll() []UserRecord
}

// MemoryUserStore is the in-memory UserStore implementation.
//
// A single mutex guards the map. Per-key locking would let distinct
// usernames proceed in parallel, but user operations are rare and short;
// the global lock keeps check-then-insert trivially atomic.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]UserRecord
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]UserRecord)}
}

func (s *MemoryUserStore) Get(username string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *MemoryUserStore) Create(rec UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Username]; ok {
		return ErrUserExists
	}
	s.users[rec.Username] = rec
	return nil
}

func (s *MemoryUserStore) Save(rec UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.Username] = rec
}

func (s *MemoryUserStore) Update(username string, email, fullName *string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	if email != nil {
		rec.Email = *email
	}
	if fullName != nil {
		rec.FullName = *fullName
	}
	s.users[username] = rec
	return rec, nil
}

func (s *MemoryUserStore) SoftDelete(username string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	rec.Disabled = true
	s.users[username] = rec
	return rec, nil
}

func (s *MemoryUserStore) ListAll() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec)
	}
	return out
}

var _ UserStore = (*MemoryUserStore)(nil)
