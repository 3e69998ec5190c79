// Package llm provides the uniform text-generation gateway used by every
// stage agent: a narrow Provider interface, a retry/rate-limit/blocked
// policy, atomic token accounting, and JSON salvage for model responses.
//
// The gateway is safe for concurrent use by all lead workers; providers must
// be safe for concurrent calls too (SDK clients are).
package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Provider is the narrow surface the gateway delegates text generation to.
// Implementations wrap an SDK (openai, anthropic) or a test fake.
type Provider interface {
	Generate(ctx context.Context, prompt string) (*ProviderResponse, error)
}

// ProviderResponse is what a provider returns. Token counts may be zero when
// the provider does not report usage; the gateway estimates them then.
type ProviderResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// Response is the gateway's result for one Generate call.
type Response struct {
	Content      string
	TokensIn     int
	TokensOut    int
	FinishReason string
}

// Usage is a snapshot of the gateway's aggregate counters.
type Usage struct {
	Calls            int64
	PromptTokens     int64
	CompletionTokens int64
}

// Options tunes the gateway's call policy.
type Options struct {
	MaxRetries int           // attempts beyond the first (default 3)
	RetryDelay time.Duration // base delay (default 5s)
	Timeout    time.Duration // per-attempt timeout; zero disables
	// RequestsPerSecond caps throughput across all callers; zero disables.
	RequestsPerSecond float64
}

// Gateway wraps a Provider with the pipeline's call policy.
type Gateway struct {
	provider   Provider
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	limiter    *rate.Limiter

	calls            atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64

	// sleep is swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a gateway around the given provider.
func New(provider Provider, opts Options) *Gateway {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Gateway{
		provider:   provider,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		limiter:    limiter,
		sleep:      sleepCtx,
	}
}

// Generate calls the provider with the gateway's retry policy:
//   - transport errors: retry after RetryDelay,
//   - rate limits: retry after RetryDelay × (attempt + 2),
//   - safety blocks: fail immediately, no retry.
//
// The prompt is passed through untruncated; prompt budgets are the stage
// runner's responsibility.
func (g *Gateway) Generate(ctx context.Context, prompt string) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, &TransportError{Err: err}
			}
		}

		resp, err := g.call(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var blocked *BlockedError
		if errors.As(err, &blocked) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt == g.maxRetries {
			break
		}

		delay := g.retryDelay
		var rl *RateLimitError
		if errors.As(err, &rl) {
			delay = g.retryDelay * time.Duration(attempt+2)
			if rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
		}
		slog.Debug("LLM call failed, retrying",
			"attempt", attempt+1,
			"max_retries", g.maxRetries,
			"delay", delay,
			"error", err)
		if err := g.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// call runs a single attempt: timeout, provider call, validation, accounting.
func (g *Gateway) call(ctx context.Context, prompt string) (*Response, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.provider.Generate(callCtx, prompt)
	if err != nil {
		// Timeouts become transport errors and flow into the retry policy.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Err: err}
		}
		return nil, err
	}
	if raw == nil || strings.TrimSpace(raw.Content) == "" {
		return nil, &InvalidResponseError{Detail: "empty content"}
	}

	tokensIn := raw.PromptTokens
	if tokensIn == 0 {
		tokensIn = EstimateTokens(prompt)
	}
	tokensOut := raw.CompletionTokens
	if tokensOut == 0 {
		tokensOut = EstimateTokens(raw.Content)
	}

	g.calls.Add(1)
	g.promptTokens.Add(int64(tokensIn))
	g.completionTokens.Add(int64(tokensOut))

	return &Response{
		Content:      raw.Content,
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		FinishReason: raw.FinishReason,
	}, nil
}

// Usage returns a snapshot of the aggregate counters.
func (g *Gateway) Usage() Usage {
	return Usage{
		Calls:            g.calls.Load(),
		PromptTokens:     g.promptTokens.Load(),
		CompletionTokens: g.completionTokens.Load(),
	}
}

// EstimateTokens approximates token count as ⌈word_count × 1.3⌉, used when a
// provider reports no usage.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * 1.3))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
