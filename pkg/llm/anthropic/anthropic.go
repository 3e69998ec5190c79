// Package anthropic adapts the Anthropic Messages API to the gateway's
// Provider interface.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Nellia-dev/prospector/pkg/llm"
)

// defaultMaxTokens caps completions when the caller configures no limit.
const defaultMaxTokens = 4096

// MessagesClient captures the subset of the SDK used by the provider.
// Satisfied by *sdk.MessageService; mockable in tests.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Provider implements llm.Provider on top of Anthropic messages.
type Provider struct {
	messages  MessagesClient
	model     string
	maxTokens int64
}

// NewProvider builds a Provider from an SDK message service and model ID.
func NewProvider(messages MessagesClient, model string, maxTokens int64) (*Provider, error) {
	if messages == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{messages: messages, model: model, maxTokens: maxTokens}, nil
}

// NewProviderFromAPIKey constructs a Provider with the default HTTP client.
func NewProviderFromAPIKey(apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewProvider(&client.Messages, model, 0)
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (*llm.ProviderResponse, error) {
	msg, err := p.messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	if string(msg.StopReason) == "refusal" {
		return nil, &llm.BlockedError{Reason: "model refusal"}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &llm.ProviderResponse{
		Content:          sb.String(),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		FinishReason:     string(msg.StopReason),
	}, nil
}

// classify maps SDK errors onto the gateway taxonomy.
func classify(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return &llm.RateLimitError{}
		case apierr.StatusCode >= 500 || apierr.StatusCode == 529:
			return &llm.TransportError{Err: err}
		case apierr.StatusCode == 400 && strings.Contains(strings.ToLower(apierr.Error()), "safety"):
			return &llm.BlockedError{Reason: apierr.Error()}
		}
	}
	return &llm.TransportError{Err: err}
}
