// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/beringai/beringchat/services/chat/store"
	"github.com/beringai/beringchat/services/llm"
)

// =============================================================================
// Test Doubles
// =============================================================================

// scriptedStream replays a fixed fragment sequence and then a terminal
// error (io.EOF for normal termination).
type scriptedStream struct {
	fragments []llm.Fragment
	terminal  error
	pos       int
	closed    bool
}

func (s *scriptedStream) Recv() (llm.Fragment, error) {
	if s.pos < len(s.fragments) {
		frag := s.fragments[s.pos]
		s.pos++
		return frag, nil
	}
	return llm.Fragment{}, s.terminal
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// recordingWriter captures every emitted record in order.
type recordingWriter struct {
	fragments  []datatypes.StreamFragment
	errRecords []datatypes.StreamError
	keepAlives int
	failAfter  int // fail WriteFragment once this many fragments were accepted; 0 disables
}

func (w *recordingWriter) WriteFragment(frag datatypes.StreamFragment) error {
	if w.failAfter > 0 && len(w.fragments) >= w.failAfter {
		return errors.New("connection reset")
	}
	w.fragments = append(w.fragments, frag)
	return nil
}

func (w *recordingWriter) WriteStreamError(se datatypes.StreamError) error {
	w.errRecords = append(w.errRecords, se)
	return nil
}

func (w *recordingWriter) WriteKeepAlive() error {
	w.keepAlives++
	return nil
}

func contentStream(parts ...string) *scriptedStream {
	fragments := make([]llm.Fragment, len(parts))
	for i, p := range parts {
		fragments[i] = llm.Fragment{Content: p}
	}
	return &scriptedStream{fragments: fragments, terminal: io.EOF}
}

// =============================================================================
// Relay Tests
// =============================================================================

func TestRelayState_String(t *testing.T) {
	assert.Equal(t, "idle", RelayIdle.String())
	assert.Equal(t, "emitting", RelayEmitting.String())
	assert.Equal(t, "completed", RelayCompleted.String())
	assert.Equal(t, "failed", RelayFailed.String())
	assert.Equal(t, "unknown(42)", RelayState(42).String())
}

func TestRelay_NormalCompletion(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	stream := contentStream("Hi", " there")
	writer := &recordingWriter{}

	res, err := relay.Run(context.Background(), "alice", "qwen3-max", stream, writer)
	require.NoError(t, err)

	assert.Equal(t, RelayCompleted, res.State)
	assert.Equal(t, 2, res.Fragments)
	assert.False(t, res.FirstFragmentAt.IsZero())
	assert.Equal(t, "Hi there", res.Answer)
	assert.True(t, stream.closed)

	// Two content fragments in upstream order, then the sentinel.
	require.Len(t, writer.fragments, 3)
	assert.Equal(t, "Hi", writer.fragments[0].Content)
	assert.False(t, writer.fragments[0].Finished)
	assert.Equal(t, " there", writer.fragments[1].Content)
	assert.False(t, writer.fragments[1].Finished)
	assert.Empty(t, writer.fragments[2].Content)
	assert.True(t, writer.fragments[2].Finished)
	assert.Equal(t, "qwen3-max", writer.fragments[2].Model)
	assert.Empty(t, writer.errRecords)

	// Exactly one assistant message with the concatenated answer.
	history := conversations.History("alice")
	require.Len(t, history, 1)
	assert.Equal(t, datatypes.RoleAssistant, history[0].Role)
	assert.Equal(t, "Hi there", history[0].Content)
}

func TestRelay_EmptyStreamStillEmitsSentinel(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	writer := &recordingWriter{}

	res, err := relay.Run(context.Background(), "alice", "qwen3-max", contentStream(), writer)
	require.NoError(t, err)

	assert.Equal(t, RelayCompleted, res.State)
	assert.Equal(t, 0, res.Fragments)
	assert.True(t, res.FirstFragmentAt.IsZero())
	assert.Empty(t, res.Answer)

	require.Len(t, writer.fragments, 1)
	assert.True(t, writer.fragments[0].Finished)

	// No empty assistant message pollutes history.
	assert.Empty(t, conversations.History("alice"))
}

func TestRelay_UpstreamErrorMidStream(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	stream := &scriptedStream{
		fragments: []llm.Fragment{{Content: "partial"}},
		terminal:  errors.New("upstream went away"),
	}
	writer := &recordingWriter{}

	res, err := relay.Run(context.Background(), "alice", "qwen3-max", stream, writer)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUpstream)

	assert.Equal(t, RelayFailed, res.State)
	assert.Equal(t, 1, res.Fragments)
	assert.True(t, stream.closed)

	// The partial fragment was emitted, followed by exactly one terminal
	// error record and no sentinel.
	require.Len(t, writer.fragments, 1)
	assert.Equal(t, "partial", writer.fragments[0].Content)
	require.Len(t, writer.errRecords, 1)
	assert.True(t, writer.errRecords[0].Finished)
	assert.Contains(t, writer.errRecords[0].Error, "upstream went away")

	// Partial content is never committed.
	assert.Empty(t, conversations.History("alice"))
}

func TestRelay_ImmediateUpstreamError(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	stream := &scriptedStream{terminal: errors.New("connect refused")}
	writer := &recordingWriter{}

	res, err := relay.Run(context.Background(), "alice", "qwen3-max", stream, writer)
	require.Error(t, err)

	assert.Equal(t, RelayFailed, res.State)
	assert.Empty(t, writer.fragments)
	require.Len(t, writer.errRecords, 1)
	assert.Empty(t, conversations.History("alice"))
}

func TestRelay_ClientDisconnect(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	stream := contentStream("never", " delivered")
	writer := &recordingWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := relay.Run(ctx, "alice", "qwen3-max", stream, writer)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, RelayFailed, res.State)
	assert.True(t, stream.closed)

	// The client is gone: no records, no error event, no commit.
	assert.Empty(t, writer.fragments)
	assert.Empty(t, writer.errRecords)
	assert.Empty(t, conversations.History("alice"))
}

func TestRelay_WriterFailure(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	stream := contentStream("one", "two", "three")
	writer := &recordingWriter{failAfter: 1}

	res, err := relay.Run(context.Background(), "alice", "qwen3-max", stream, writer)
	require.Error(t, err)

	assert.Equal(t, RelayFailed, res.State)
	assert.Equal(t, 1, res.Fragments)
	assert.Empty(t, conversations.History("alice"))
}

func TestRelay_PreservesFragmentOrder(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)
	parts := []string{"a", "b", "c", "d", "e", "f", "g"}
	writer := &recordingWriter{}

	res, err := relay.Run(context.Background(), "alice", "m", contentStream(parts...), writer)
	require.NoError(t, err)

	assert.Equal(t, len(parts), res.Fragments)
	require.Len(t, writer.fragments, len(parts)+1)
	for i, p := range parts {
		assert.Equal(t, p, writer.fragments[i].Content)
	}
	assert.Equal(t, "abcdefg", res.Answer)
}

func TestRelay_RunsAreIsolatedPerUser(t *testing.T) {
	conversations := store.NewConversationStore()
	relay := NewRelay(conversations)

	_, err := relay.Run(context.Background(), "alice", "m", contentStream("for alice"), &recordingWriter{})
	require.NoError(t, err)
	_, err = relay.Run(context.Background(), "bob", "m", contentStream("for bob"), &recordingWriter{})
	require.NoError(t, err)

	require.Len(t, conversations.History("alice"), 1)
	assert.Equal(t, "for alice", conversations.History("alice")[0].Content)
	require.Len(t, conversations.History("bob"), 1)
	assert.Equal(t, "for bob", conversations.History("bob")[0].Content)
}
