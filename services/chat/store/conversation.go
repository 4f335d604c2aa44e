// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"sync"

	"github.com/beringai/beringchat/services/chat/datatypes"
)

// ConversationStore keeps the per-user, append-only message logs.
//
// # Thread Safety
//
// Appends for the same user are serialized by a per-user mutex; logs for
// different users are fully independent and never contend beyond the
// short map lookup that resolves the per-user entry.
//
// # Limitations
//
//   - History lives only in process memory and is lost on restart.
//   - Logs grow monotonically until Clear is called.
type ConversationStore struct {
	mu   sync.RWMutex // guards the logs map itself
	logs map[string]*conversationLog
}

type conversationLog struct {
	mu       sync.Mutex
	messages []datatypes.ChatMessage
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{logs: make(map[string]*conversationLog)}
}

// logFor returns the log for username, creating it lazily on first use.
func (s *ConversationStore) logFor(username string) *conversationLog {
	s.mu.RLock()
	log, ok := s.logs[username]
	s.mu.RUnlock()
	if ok {
		return log
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok = s.logs[username]; ok {
		return log
	}
	log = &conversationLog{}
	s.logs[username] = log
	return log
}

// Append adds a message to the user's log, creating the log if needed.
// Insertion order is chronological and preserved by History.
func (s *ConversationStore) Append(username string, msg datatypes.ChatMessage) {
	log := s.logFor(username)
	log.mu.Lock()
	defer log.mu.Unlock()
	log.messages = append(log.messages, msg)
}

// History returns a copy of the user's log in append order. Users with
// no history get an empty slice, never an error.
func (s *ConversationStore) History(username string) []datatypes.ChatMessage {
	s.mu.RLock()
	log, ok := s.logs[username]
	s.mu.RUnlock()
	if !ok {
		return []datatypes.ChatMessage{}
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	out := make([]datatypes.ChatMessage, len(log.messages))
	copy(out, log.messages)
	return out
}

// Clear truncates the user's log and returns how many messages were
// removed. Clearing an unknown user removes nothing and returns zero.
func (s *ConversationStore) Clear(username string) int {
	s.mu.RLock()
	log, ok := s.logs[username]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	n := len(log.messages)
	log.messages = nil
	return n
}
