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
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/beringai/beringchat/services/chat/middleware"
	"github.com/beringai/beringchat/services/chat/observability"
)

// heartbeatInterval is how often keep-alive comments are sent while the
// upstream has not produced a fragment. Stays under the common 60s load
// balancer idle timeout.
const heartbeatInterval = 15 * time.Second

// handleChatStream serves the streaming arm of POST /chat/chat.
//
// # Description
//
// Called by HandleChat after validation with the user turn already
// appended to history. The flow is:
//  1. Set SSE headers and create the fragment writer.
//  2. Open the upstream completion stream.
//  3. Start a heartbeat goroutine for keep-alive pings.
//  4. Run the relay: per-fragment emit, accumulate, commit on success.
//  5. Record stream metrics.
//
// Once the SSE writer exists, every failure — including a failure to
// open the upstream stream — is delivered as an in-band error record so
// the client always receives a well-formed terminal signal rather than
// a truncated stream.
func (h *ChatHandler) handleChatStream(c *gin.Context, ctx context.Context,
	username string, req *datatypes.ChatRequest) {

	startTime := time.Now()
	endpoint := observability.EndpointChatStream

	ctx, span := chatTracer.Start(ctx, "HandleChatStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.name", username),
		attribute.String("request.id", middleware.RequestID(c)),
	)

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, time.Since(startTime).Seconds(), success)
		}
	}()

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Failed to create SSE writer", "error", err, "user", username)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(500, gin.H{"error": "streaming not supported"})
		return
	}

	params := h.params(req)
	stream, err := h.llmClient.CompleteStream(ctx, req.Messages, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream open failed")
		slog.Error("Failed to open completion stream", "error", err, "user", username)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeUpstream)
		}
		_ = writer.WriteStreamError(datatypes.StreamError{
			Error:     err.Error(),
			Finished:  true,
			Timestamp: time.Now(),
		})
		return
	}

	heartbeatDone := make(chan struct{})
	go h.runHeartbeat(ctx, writer, heartbeatDone)

	result, relayErr := h.relay.Run(ctx, username, params.Model, stream, writer)
	close(heartbeatDone)

	span.SetAttributes(attribute.Int("stream.fragment_count", result.Fragments))
	if m := observability.DefaultMetrics; m != nil {
		for i := 0; i < result.Fragments; i++ {
			m.RecordFragment(endpoint)
		}
	}

	if relayErr != nil {
		span.RecordError(relayErr)
		span.SetStatus(codes.Error, "relay failed")
		slog.Error("Streaming relay failed",
			"error", relayErr,
			"user", username,
			"fragments", result.Fragments,
			"state", result.State.String(),
		)
		if m := observability.DefaultMetrics; m != nil {
			if errors.Is(relayErr, context.Canceled) {
				m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
			} else {
				m.RecordError(endpoint, observability.ErrorCodeUpstream)
			}
		}
		// Terminal error record already sent in-band by the relay.
		return
	}

	if !result.FirstFragmentAt.IsZero() {
		ttff := result.FirstFragmentAt.Sub(startTime).Seconds()
		span.SetAttributes(attribute.Float64("stream.time_to_first_fragment_seconds", ttff))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTimeToFirstFragment(endpoint, ttff)
		}
	}

	success = true
	span.SetStatus(codes.Ok, "stream completed")
}

// runHeartbeat pings the connection until the stream finishes. A failed
// ping means the client is gone; the relay notices via ctx on its next
// iteration.
func (h *ChatHandler) runHeartbeat(ctx context.Context, writer FragmentWriter, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
		}
	}
}
