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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/beringai/beringchat/services/chat/store"
	"github.com/beringai/beringchat/services/llm"
)

// =============================================================================
// Relay State Machine
// =============================================================================

// RelayState is the lifecycle state of one streaming relay run.
//
// Transitions: Idle → Emitting on the first content-bearing fragment,
// then Emitting → Completed on normal upstream termination or
// Emitting → Failed on an upstream error or client disconnect. A stream
// that terminates before producing content goes Idle → Completed (or
// Idle → Failed) directly.
type RelayState int

const (
	RelayIdle RelayState = iota
	RelayEmitting
	RelayCompleted
	RelayFailed
)

func (s RelayState) String() string {
	switch s {
	case RelayIdle:
		return "idle"
	case RelayEmitting:
		return "emitting"
	case RelayCompleted:
		return "completed"
	case RelayFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// RelayResult summarizes a finished relay run.
//
// # Fields
//
//   - State: RelayCompleted or RelayFailed.
//   - Fragments: Number of content fragments emitted to the client.
//   - FirstFragmentAt: Time of the first emitted fragment; zero when the
//     stream produced no content.
//   - Answer: The accumulated assistant answer. Only committed to
//     history when State is RelayCompleted and Answer is non-empty.
type RelayResult struct {
	State           RelayState
	Fragments       int
	FirstFragmentAt time.Time
	Answer          string
}

// Relay drives one upstream completion stream to a client.
//
// # Description
//
// The relay consumes fragments from a CompletionStream and emits one
// StreamFragment record per fragment, in upstream order, with no
// reordering or coalescing and no buffering beyond the record being
// written. Content is accumulated; on normal termination the full
// answer is appended to the user's conversation log as a single
// assistant message and a content-empty finished:true sentinel is
// emitted. An upstream error instead produces one terminal in-band
// error record, and nothing is committed to history.
//
// The relay never retries: each run corresponds to exactly one upstream
// call.
//
// # Thread Safety
//
// A Relay value is immutable after construction and safe for concurrent
// Run calls; each run's mutable state lives on the stack.
type Relay struct {
	conversations *store.ConversationStore
	now           func() time.Time
}

// NewRelay creates a relay that persists completed answers to the given
// conversation store.
func NewRelay(conversations *store.ConversationStore) *Relay {
	return &Relay{
		conversations: conversations,
		now:           time.Now,
	}
}

// Run consumes the stream until termination and reports the outcome.
//
// # Inputs
//
//   - ctx: Request context; cancellation means the client disconnected.
//     The relay stops consuming, commits nothing, and returns ctx's error.
//   - username: Authenticated owner of the conversation log. Only this
//     user's log can receive the committed answer.
//   - model: Model name stamped on every emitted record.
//   - stream: The upstream fragment sequence. Closed before Run returns.
//   - writer: Destination for emitted records.
//
// # Outputs
//
//   - RelayResult: Final state and emission statistics.
//   - error: Non-nil iff the result state is RelayFailed.
//
// # Edge Cases
//
//   - Empty stream (immediate EOF): no assistant message is appended,
//     but the finished sentinel is still emitted so the client gets a
//     well-defined terminal signal.
//   - Writer failure mid-stream: treated like a disconnect; the run
//     fails and nothing is committed.
func (r *Relay) Run(ctx context.Context, username, model string,
	stream llm.CompletionStream, writer FragmentWriter) (RelayResult, error) {

	defer func() {
		if err := stream.Close(); err != nil {
			slog.Debug("Failed to close completion stream", "error", err)
		}
	}()

	res := RelayResult{State: RelayIdle}
	var accumulator strings.Builder

	for {
		// A canceled request means the client is gone: stop consuming
		// the upstream and release it without committing anything.
		select {
		case <-ctx.Done():
			res.State = RelayFailed
			return res, ctx.Err()
		default:
		}

		frag, err := stream.Recv()
		if err == io.EOF {
			return r.complete(username, model, &accumulator, writer, res)
		}
		if err != nil {
			return r.fail(username, writer, res, err)
		}

		res.State = RelayEmitting
		if res.Fragments == 0 {
			res.FirstFragmentAt = r.now()
		}
		accumulator.WriteString(frag.Content)

		if werr := writer.WriteFragment(datatypes.StreamFragment{
			Content:   frag.Content,
			Finished:  false,
			Model:     model,
			Timestamp: r.now(),
		}); werr != nil {
			res.State = RelayFailed
			return res, fmt.Errorf("emit fragment: %w", werr)
		}
		res.Fragments++
	}
}

// complete handles normal upstream termination: commit the accumulated
// answer (if any) and emit the terminal sentinel.
func (r *Relay) complete(username, model string, accumulator *strings.Builder,
	writer FragmentWriter, res RelayResult) (RelayResult, error) {

	res.State = RelayCompleted
	res.Answer = accumulator.String()

	if res.Answer != "" {
		r.conversations.Append(username, datatypes.ChatMessage{
			Role:      datatypes.RoleAssistant,
			Content:   res.Answer,
			Timestamp: r.now(),
		})
	}

	if err := writer.WriteFragment(datatypes.StreamFragment{
		Content:   "",
		Finished:  true,
		Model:     model,
		Timestamp: r.now(),
	}); err != nil {
		// The answer is already committed; a lost sentinel only costs
		// the client its terminal signal.
		slog.Debug("Failed to write finished sentinel", "user", username, "error", err)
	}
	return res, nil
}

// fail handles an upstream error surfaced mid-iteration: emit one
// terminal error record and commit nothing. Partial, unconfirmed
// content must not pollute history.
func (r *Relay) fail(username string, writer FragmentWriter,
	res RelayResult, cause error) (RelayResult, error) {

	res.State = RelayFailed

	upstreamErr := cause
	if !errors.Is(upstreamErr, llm.ErrUpstream) {
		upstreamErr = fmt.Errorf("%w: %v", llm.ErrUpstream, cause)
	}
	slog.Error("Completion stream failed",
		"user", username,
		"fragments", res.Fragments,
		"error", cause,
	)

	if werr := writer.WriteStreamError(datatypes.StreamError{
		Error:     cause.Error(),
		Finished:  true,
		Timestamp: r.now(),
	}); werr != nil {
		slog.Debug("Failed to write stream error record", "user", username, "error", werr)
	}
	return res, upstreamErr
}
