// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserStore_CreateAndGet(t *testing.T) {
	s := NewMemoryUserStore()

	rec := UserRecord{Username: "alice", Email: "alice@example.com", FullName: "Alice"}
	require.NoError(t, s.Create(rec))

	got, err := s.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestMemoryUserStore_GetUnknown(t *testing.T) {
	s := NewMemoryUserStore()

	_, err := s.Get("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryUserStore()

	require.NoError(t, s.Create(UserRecord{Username: "alice"}))
	err := s.Create(UserRecord{Username: "alice", Email: "second@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	// Disabled records still count as present.
	_, err = s.SoftDelete("alice")
	require.NoError(t, err)
	err = s.Create(UserRecord{Username: "alice"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestMemoryUserStore_Update(t *testing.T) {
	s := NewMemoryUserStore()
	require.NoError(t, s.Create(UserRecord{Username: "alice", Email: "old@example.com", FullName: "Alice"}))

	newEmail := "new@example.com"
	rec, err := s.Update("alice", &newEmail, nil)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.Equal(t, "Alice", rec.FullName, "nil pointer must leave field untouched")

	newName := "Alice Liddell"
	rec, err = s.Update("alice", nil, &newName)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.Equal(t, "Alice Liddell", rec.FullName)
}

func TestMemoryUserStore_UpdateUnknown(t *testing.T) {
	s := NewMemoryUserStore()

	email := "x@example.com"
	_, err := s.Update("ghost", &email, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserStore_SoftDelete(t *testing.T) {
	s := NewMemoryUserStore()
	require.NoError(t, s.Create(UserRecord{Username: "alice"}))

	rec, err := s.SoftDelete("alice")
	require.NoError(t, err)
	assert.True(t, rec.Disabled)

	// The record is still retrievable and enumerable.
	got, err := s.Get("alice")
	require.NoError(t, err)
	assert.True(t, got.Disabled)
	assert.Len(t, s.ListAll(), 1)
}

func TestMemoryUserStore_SoftDeleteUnknown(t *testing.T) {
	s := NewMemoryUserStore()
	_, err := s.SoftDelete("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserStore_ListAll(t *testing.T) {
	s := NewMemoryUserStore()
	assert.Empty(t, s.ListAll())

	require.NoError(t, s.Create(UserRecord{Username: "alice"}))
	require.NoError(t, s.Create(UserRecord{Username: "bob"}))
	_, err := s.SoftDelete("bob")
	require.NoError(t, err)

	all := s.ListAll()
	assert.Len(t, all, 2)
}

func TestMemoryUserStore_ConcurrentCreateSingleWinner(t *testing.T) {
	s := NewMemoryUserStore()

	const racers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := s.Create(UserRecord{Username: "contested"}); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one concurrent signup must win")
}
