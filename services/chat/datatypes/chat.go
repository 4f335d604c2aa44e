// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the chat
// service. This file contains the chat conversation types; user and
// token types live in user.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100
)

// =============================================================================
// Message Roles
// =============================================================================

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length (not rune count) so oversized
// payloads are rejected regardless of encoding.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Types
// =============================================================================

// ChatMessage is a single turn of a conversation.
//
// # Fields
//
//   - Role: "user", "assistant", or "system".
//   - Content: Message text, at most 32KB.
//   - Timestamp: When the message was created. Zero for caller-supplied
//     history entries that never touched the server.
//
// Messages are immutable once appended to a conversation log.
type ChatMessage struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant system"`
	Content   string    `json:"content" validate:"required,maxbytes"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ChatRequest is the body of POST /chat/chat.
//
// # Fields
//
//   - Messages: Required. Full caller-supplied conversation history in
//     chronological order, 1-100 entries.
//   - Model: Optional. Upstream model name; empty uses the configured default.
//   - Temperature: Optional. Sampling temperature, provider range 0-2.
//   - MaxTokens: Optional. Positive completion token cap.
//   - Stream: When true the response is an SSE stream of StreamFragment
//     records instead of a single ChatResponse.
//
// The request itself is not persisted; only its final user message and
// the completed assistant answer enter the conversation log.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
	Model       string        `json:"model,omitempty"`
	Temperature *float32      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Stream      bool          `json:"stream"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse is the non-streaming response of POST /chat/chat.
//
// Usage is present only when the upstream provider reported token
// statistics; its absence is not an error.
type ChatResponse struct {
	Message ChatMessage    `json:"message"`
	Model   string         `json:"model"`
	Usage   map[string]int `json:"usage,omitempty"`
}

// =============================================================================
// Streaming Event Types
// =============================================================================

// StreamFragment is one SSE record of a streaming chat response.
//
// Content-bearing fragments have Finished=false. The terminal sentinel
// carries empty Content and Finished=true; clients treat it as the
// well-defined end-of-stream signal. A stream that produced no content
// still ends with the sentinel.
type StreamFragment struct {
	Content   string    `json:"content"`
	Finished  bool      `json:"finished"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamError is the terminal in-band error record of a failed stream.
// After a StreamError no further records are sent, and no partial
// assistant message is committed to history.
type StreamError struct {
	Error     string    `json:"error"`
	Finished  bool      `json:"finished"`
	Timestamp time.Time `json:"timestamp"`
}
