// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers of the chat service: the
// user account endpoints, the chat endpoints, and the streaming relay
// that turns an upstream completion stream into client-visible SSE
// records.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/beringai/beringchat/services/chat/middleware"
	"github.com/beringai/beringchat/services/chat/observability"
	"github.com/beringai/beringchat/services/chat/store"
	"github.com/beringai/beringchat/services/llm"
)

var chatTracer = otel.Tracer("bering.chat.handlers")

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// ChatDefaults are the service-level completion defaults applied when a
// request leaves the corresponding field unset.
type ChatDefaults struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// ChatHandler serves the /chat endpoints.
type ChatHandler struct {
	llmClient     llm.CompletionClient
	conversations *store.ConversationStore
	relay         *Relay
	defaults      ChatDefaults
}

// NewChatHandler wires the chat endpoints to their collaborators.
func NewChatHandler(llmClient llm.CompletionClient, conversations *store.ConversationStore,
	defaults ChatDefaults) *ChatHandler {
	return &ChatHandler{
		llmClient:     llmClient,
		conversations: conversations,
		relay:         NewRelay(conversations),
		defaults:      defaults,
	}
}

// params resolves the effective generation parameters for a request.
func (h *ChatHandler) params(req *datatypes.ChatRequest) llm.GenerationParams {
	p := llm.GenerationParams{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if p.Model == "" {
		p.Model = h.defaults.Model
	}
	if p.Temperature == nil {
		t := h.defaults.Temperature
		p.Temperature = &t
	}
	if p.MaxTokens == nil {
		n := h.defaults.MaxTokens
		p.MaxTokens = &n
	}
	return p
}

// HandleChat processes POST /chat/chat.
//
// # Description
//
// The core chat endpoint. After validation the latest caller message is
// appended to the authenticated user's conversation log, then the
// request is dispatched on its stream flag:
//
//   - stream=false: one upstream round trip; the full assistant answer
//     is appended to the log and returned as a ChatResponse.
//   - stream=true: the response becomes an SSE stream of StreamFragment
//     records driven by the relay (see HandleChatStream in
//     chat_streaming.go).
//
// # Outputs
//
// HTTP status:
//   - 200: ChatResponse (non-streaming) or SSE stream.
//   - 400: Invalid body or validation failure.
//   - 500: Upstream call failed or returned an empty completion
//     (non-streaming only; streaming failures are in-band events).
func (h *ChatHandler) HandleChat(c *gin.Context) {
	ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	span.SetAttributes(attribute.String("user.name", user.Username))

	var req datatypes.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse chat request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointChat, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Chat request validation failed", "error", err, "user", user.Username)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointChat, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	span.SetAttributes(
		attribute.Int("request.message_count", len(req.Messages)),
		attribute.Bool("request.stream", req.Stream),
	)

	// Record the caller's latest turn before the upstream call. Only
	// messages flowing through an authenticated request reach this log,
	// so cross-user writes are impossible by construction.
	last := req.Messages[len(req.Messages)-1]
	h.conversations.Append(user.Username, datatypes.ChatMessage{
		Role:      last.Role,
		Content:   last.Content,
		Timestamp: time.Now(),
	})

	if req.Stream {
		h.handleChatStream(c, ctx, user.Username, &req)
		return
	}

	params := h.params(&req)
	result, err := h.llmClient.Complete(ctx, req.Messages, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		slog.Error("Chat completion failed", "error", err, "user", user.Username)
		if m := observability.DefaultMetrics; m != nil {
			code := observability.ErrorCodeUpstream
			if errors.Is(err, llm.ErrEmptyCompletion) {
				code = observability.ErrorCodeEmptyCompletion
			}
			m.RecordError(observability.EndpointChat, code)
			m.RecordRequest(observability.EndpointChat, false)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	assistant := datatypes.ChatMessage{
		Role:      datatypes.RoleAssistant,
		Content:   result.Content,
		Timestamp: time.Now(),
	}
	h.conversations.Append(user.Username, assistant)

	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointChat, true)
	}
	span.SetStatus(codes.Ok, "completed")
	c.JSON(http.StatusOK, datatypes.ChatResponse{
		Message: assistant,
		Model:   result.Model,
		Usage:   result.Usage,
	})
}

// HandleModels processes GET /chat/models.
//
// Lists the upstream provider's models. When the listing call fails the
// endpoint degrades to the configured default model instead of erroring;
// model-list discovery is best effort.
func (h *ChatHandler) HandleModels(c *gin.Context) {
	ctx, span := chatTracer.Start(c.Request.Context(), "HandleModels")
	defer span.End()

	user, _ := middleware.CurrentUser(c)

	models, err := h.llmClient.ListModels(ctx)
	if err != nil || len(models) == 0 {
		slog.Warn("Model listing failed, falling back to default", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(observability.EndpointModels, true)
		}
		c.JSON(http.StatusOK, gin.H{
			"models":        []string{h.defaults.Model},
			"default_model": h.defaults.Model,
			"note":          "using default model configuration",
			"user":          user.Username,
		})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointModels, true)
	}
	c.JSON(http.StatusOK, gin.H{
		"models":        models,
		"default_model": h.defaults.Model,
		"user":          user.Username,
	})
}

// HandleHistory processes GET /chat/history. Users only ever see their
// own log; a user with no history gets an empty list, not an error.
func (h *ChatHandler) HandleHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointHistory, true)
	}
	c.JSON(http.StatusOK, h.conversations.History(user.Username))
}

// HandleClearHistory processes DELETE /chat/history and reports how many
// messages were removed. Clearing is irreversible.
func (h *ChatHandler) HandleClearHistory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	deleted := h.conversations.Clear(user.Username)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(observability.EndpointHistory, true)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "chat history cleared",
		"user":             user.Username,
		"deleted_messages": deleted,
		"timestamp":        time.Now(),
	})
}

// HealthCheck returns the unauthenticated GET /chat/health handler,
// reporting service status for load balancers and monitoring.
func HealthCheck(defaultModel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"version":   ServiceVersion,
			"model":     defaultModel,
		})
	}
}
