package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns its queued results in order, repeating the last
// one when the queue runs out.
type scriptedProvider struct {
	calls   int
	results []func() (*ProviderResponse, error)
}

func (p *scriptedProvider) Generate(context.Context, string) (*ProviderResponse, error) {
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i]()
}

func ok(content string) func() (*ProviderResponse, error) {
	return func() (*ProviderResponse, error) {
		return &ProviderResponse{Content: content, PromptTokens: 10, CompletionTokens: 5}, nil
	}
}

func fail(err error) func() (*ProviderResponse, error) {
	return func() (*ProviderResponse, error) { return nil, err }
}

func newTestGateway(p Provider, maxRetries int) (*Gateway, *[]time.Duration) {
	g := New(p, Options{MaxRetries: maxRetries, RetryDelay: 5 * time.Second})
	var delays []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return g, &delays
}

func TestGenerateSuccessFirstAttempt(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){ok("hello")}}
	g, delays := newTestGateway(p, 3)

	resp, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 5, resp.TokensOut)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *delays)
}

func TestGenerateRetriesTransportErrors(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&TransportError{Err: errors.New("boom")}),
		fail(&TransportError{Err: errors.New("boom")}),
		ok("recovered"),
	}}
	g, delays := newTestGateway(p, 3)

	resp, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *delays)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&TransportError{Err: errors.New("down")}),
	}}
	g, _ := newTestGateway(p, 2)

	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, 3, p.calls) // first attempt + 2 retries
}

func TestGenerateRateLimitBackoffGrows(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&RateLimitError{}),
		fail(&RateLimitError{}),
		ok("finally"),
	}}
	g, delays := newTestGateway(p, 3)

	_, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	// delay = base × (attempt + 2)
	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second}, *delays)
}

func TestGenerateHonorsRetryAfter(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&RateLimitError{RetryAfter: time.Minute}),
		ok("done"),
	}}
	g, delays := newTestGateway(p, 3)

	_, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Minute}, *delays)
}

func TestGenerateBlockedFailsImmediately(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&BlockedError{Reason: "safety"}),
		ok("never reached"),
	}}
	g, delays := newTestGateway(p, 3)

	_, err := g.Generate(context.Background(), "prompt")
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *delays)
}

func TestGenerateEmptyContentIsInvalid(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		func() (*ProviderResponse, error) { return &ProviderResponse{Content: "   "}, nil },
	}}
	g, _ := newTestGateway(p, 1)

	_, err := g.Generate(context.Background(), "prompt")
	var invalid *InvalidResponseError
	require.ErrorAs(t, err, &invalid)
}

func TestGenerateEstimatesMissingTokenCounts(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		func() (*ProviderResponse, error) { return &ProviderResponse{Content: "one two three four"}, nil },
	}}
	g, _ := newTestGateway(p, 1)

	resp, err := g.Generate(context.Background(), "two words")
	require.NoError(t, err)
	assert.Equal(t, EstimateTokens("two words"), resp.TokensIn)
	assert.Equal(t, EstimateTokens("one two three four"), resp.TokensOut)

	usage := g.Usage()
	assert.Equal(t, int64(1), usage.Calls)
	assert.Equal(t, int64(resp.TokensIn), usage.PromptTokens)
	assert.Equal(t, int64(resp.TokensOut), usage.CompletionTokens)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 2, EstimateTokens("one"))     // ceil(1 × 1.3)
	assert.Equal(t, 13, EstimateTokens("a b c d e f g h i j")) // ceil(10 × 1.3)
}

func TestGenerateStopsOnContextCancel(t *testing.T) {
	p := &scriptedProvider{results: []func() (*ProviderResponse, error){
		fail(&TransportError{Err: errors.New("down")}),
	}}
	g, _ := newTestGateway(p, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}
