// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/beringai/beringchat/services/chat/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// FragmentWriter is the relay's output port: something that can deliver
// stream fragments and a terminal error record to the client.
//
// # Description
//
// Abstracting the writer keeps the relay state machine testable without
// an HTTP connection. The production implementation speaks SSE; tests
// use an in-memory recorder.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the heartbeat
// goroutine pings the connection while the relay emits fragments.
type FragmentWriter interface {
	// WriteFragment delivers one StreamFragment record immediately
	// (no buffering beyond the single record).
	WriteFragment(frag datatypes.StreamFragment) error

	// WriteStreamError delivers the terminal in-band error record.
	// No further records follow it.
	WriteStreamError(se datatypes.StreamError) error

	// WriteKeepAlive sends a comment line to prevent connection
	// timeouts from load balancers during long upstream waits.
	WriteKeepAlive() error
}

// =============================================================================
// SSE Implementation
// =============================================================================

// sseWriter implements FragmentWriter over an HTTP response.
//
// Each record is written in Server-Sent-Events framing: one line
// prefixed "data: " carrying the JSON-encoded record, terminated by a
// blank line, flushed immediately. Keep-alive pings are SSE comments
// (": ping") which clients ignore.
//
// # Thread Safety
//
// Thread-safe via mutex. Cannot be reused across requests.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates a FragmentWriter for the given ResponseWriter.
//
// The caller must set SSE headers via SetSSEHeaders before the first
// write. Returns an error if the ResponseWriter cannot flush, in which
// case streaming is not possible on this connection.
func NewSSEWriter(w http.ResponseWriter) (FragmentWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteFragment(frag datatypes.StreamFragment) error {
	return w.writeRecord(frag)
}

func (w *sseWriter) WriteStreamError(se datatypes.StreamError) error {
	return w.writeRecord(se)
}

// writeRecord serializes v and writes one "data: {json}\n\n" block.
func (w *sseWriter) writeRecord(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal stream record: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write stream record: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// Sets Content-Type: text/event-stream, disables caching and proxy
// buffering, and keeps the connection alive. Must be called before any
// response body is written.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ FragmentWriter = (*sseWriter)(nil)
