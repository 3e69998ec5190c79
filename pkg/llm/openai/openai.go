// Package openai adapts the official OpenAI SDK to the gateway's Provider
// interface and to the RAG store's Embedder interface. It maps SDK errors
// onto the gateway's error taxonomy (rate limit, blocked, transport).
package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Nellia-dev/prospector/pkg/llm"
)

// ChatClient captures the subset of the SDK used by the provider. Satisfied
// by sdk.Client's chat completion service; mockable in tests.
type ChatClient interface {
	New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// EmbeddingClient captures the subset of the SDK used by the embedder.
type EmbeddingClient interface {
	New(ctx context.Context, params sdk.EmbeddingNewParams, opts ...option.RequestOption) (*sdk.CreateEmbeddingResponse, error)
}

// Provider implements llm.Provider on top of OpenAI chat completions.
type Provider struct {
	chat  ChatClient
	model string
}

// NewProvider builds a Provider from an SDK chat service and model ID.
func NewProvider(chat ChatClient, model string) (*Provider, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if model == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	return &Provider{chat: chat, model: model}, nil
}

// NewProviderFromAPIKey constructs a Provider with the default HTTP client.
func NewProviderFromAPIKey(apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewProvider(&client.Chat.Completions, model)
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (*llm.ProviderResponse, error) {
	completion, err := p.chat.New(ctx, sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(p.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &llm.InvalidResponseError{Detail: "no choices in completion"}
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, &llm.BlockedError{Reason: "content filter"}
	}

	return &llm.ProviderResponse{
		Content:          choice.Message.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		FinishReason:     string(choice.FinishReason),
	}, nil
}

// Embedder implements rag.Embedder on top of OpenAI embeddings.
type Embedder struct {
	embeddings EmbeddingClient
	model      string
}

// NewEmbedder builds an Embedder from an SDK embedding service and model ID.
func NewEmbedder(embeddings EmbeddingClient, model string) (*Embedder, error) {
	if embeddings == nil {
		return nil, errors.New("openai: embedding client is required")
	}
	if model == "" {
		model = string(sdk.EmbeddingModelTextEmbedding3Small)
	}
	return &Embedder{embeddings: embeddings, model: model}, nil
}

// NewEmbedderFromAPIKey constructs an Embedder with the default HTTP client.
func NewEmbedderFromAPIKey(apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewEmbedder(&client.Embeddings, model)
}

// Embed returns one dense vector per input text, rows aligned with input.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(e.model),
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embedding count %d does not match input count %d", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// classify maps SDK errors onto the gateway taxonomy.
func classify(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return &llm.RateLimitError{}
		case apierr.StatusCode >= 500:
			return &llm.TransportError{Err: err}
		case apierr.StatusCode == 400 || apierr.StatusCode == 403:
			return &llm.BlockedError{Reason: apierr.Error()}
		}
	}
	return &llm.TransportError{Err: err}
}
