package llm

import (
	"context"
	"errors"

	"github.com/beringai/beringchat/services/chat/datatypes"
)

var (
	// ErrUpstream wraps any network or provider failure. The provider's
	// own message is attached by the implementation.
	ErrUpstream = errors.New("upstream completion failed")

	// ErrEmptyCompletion is returned when a non-streaming call succeeds
	// at the transport level but carries no choices. It is distinct from
	// an empty-string answer.
	ErrEmptyCompletion = errors.New("upstream returned an empty completion")
)

// GenerationParams are the per-request completion knobs. Nil pointers
// mean "use the service default".
type GenerationParams struct {
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// CompletionResult is the outcome of a non-streaming completion.
type CompletionResult struct {
	Content string
	Model   string
	// Usage holds the provider's token statistics when supplied,
	// nil otherwise.
	Usage map[string]int
}

// Fragment is one incremental piece of generated text from a stream.
type Fragment struct {
	Content string
}

// CompletionStream is a lazy, finite, non-restartable fragment sequence.
// Recv returns io.EOF on normal termination and a non-nil error on
// provider failure; Close releases the underlying connection.
type CompletionStream interface {
	Recv() (Fragment, error)
	Close() error
}

// CompletionClient is the gateway to the upstream LLM provider. It
// translates the internal message format into the provider's wire
// format; interpreting fragments is the caller's job.
type CompletionClient interface {
	Complete(ctx context.Context, messages []datatypes.ChatMessage, params GenerationParams) (*CompletionResult, error)
	CompleteStream(ctx context.Context, messages []datatypes.ChatMessage, params GenerationParams) (CompletionStream, error)
	ListModels(ctx context.Context) ([]string, error)
}
