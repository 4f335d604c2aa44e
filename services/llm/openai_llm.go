package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beringai/beringchat/services/chat/datatypes"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint
// (OpenAI itself, DashScope, vLLM, ...). The base URL and key come from
// configuration; requests may override the model per call.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIClient creates a gateway against an OpenAI-compatible API.
// An empty baseURL uses the library default (api.openai.com).
func NewOpenAIClient(apiKey, baseURL, defaultModel string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key not set")
	}
	if defaultModel == "" {
		return nil, fmt.Errorf("default model not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	slog.Info("Initializing OpenAI-compatible client", "base_url", cfg.BaseURL, "default_model", defaultModel)
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}, nil
}

// buildRequest translates the internal message sequence into the
// provider wire format, preserving order.
func (o *OpenAIClient) buildRequest(messages []datatypes.ChatMessage, params GenerationParams) openai.ChatCompletionRequest {
	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	req := openai.ChatCompletionRequest{
		Model:    params.Model,
		Messages: apiMessages,
	}
	if req.Model == "" {
		req.Model = o.defaultModel
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	return req
}

// Complete performs one non-streaming round trip.
func (o *OpenAIClient) Complete(ctx context.Context, messages []datatypes.ChatMessage,
	params GenerationParams) (*CompletionResult, error) {

	req := o.buildRequest(messages, params)
	slog.Debug("Requesting completion", "model", req.Model, "messages", len(req.Messages))

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Chat completion call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Chat completion returned no choices", "model", req.Model)
		return nil, ErrEmptyCompletion
	}

	result := &CompletionResult{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}
	if resp.Usage.TotalTokens > 0 {
		result.Usage = map[string]int{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// CompleteStream opens a streaming completion. The returned stream
// yields content fragments until io.EOF; it must be closed by the caller.
func (o *OpenAIClient) CompleteStream(ctx context.Context, messages []datatypes.ChatMessage,
	params GenerationParams) (CompletionStream, error) {

	req := o.buildRequest(messages, params)
	req.Stream = true
	slog.Debug("Opening completion stream", "model", req.Model, "messages", len(req.Messages))

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		slog.Error("Chat completion stream open failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &openaiStream{stream: stream}, nil
}

// ListModels returns the ids of the models the provider advertises.
func (o *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// openaiStream adapts the go-openai stream to CompletionStream. Chunks
// without delta content (role headers, usage-only tails) are skipped so
// callers only ever see content-bearing fragments.
type openaiStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (Fragment, error) {
	for {
		chunk, err := s.stream.Recv()
		if err != nil {
			// io.EOF passes through untouched as the normal-termination
			// signal; everything else is a provider failure.
			return Fragment{}, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		return Fragment{Content: content}, nil
	}
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

var _ CompletionClient = (*OpenAIClient)(nil)
var _ CompletionStream = (*openaiStream)(nil)
