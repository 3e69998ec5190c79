package llm

import (
	"fmt"
	"time"
)

// BlockedError signals a provider safety refusal. Never retried.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return "llm: content blocked"
	}
	return fmt.Sprintf("llm: content blocked: %s", e.Reason)
}

// RateLimitError signals a provider rate-limit response. Retried with
// multiplicative backoff.
type RateLimitError struct {
	RetryAfter time.Duration // zero when the provider gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm: rate limited (retry after %s)", e.RetryAfter)
	}
	return "llm: rate limited"
}

// TransportError wraps network-level and provider 5xx failures. Retried with
// a fixed delay.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// InvalidResponseError signals a structurally unusable provider response
// (empty content, missing fields).
type InvalidResponseError struct {
	Detail string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("llm: invalid response: %s", e.Detail)
}

// ParseError is returned by ParseJSON when the response cannot be parsed as
// JSON even after salvage. Raw carries the full original text; the gateway
// never guesses values.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("llm: response is not valid JSON: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// rawHeadLimit bounds the response excerpt included in stage error messages.
const rawHeadLimit = 200

// Head returns the first ~200 characters of the raw response for error
// reporting.
func (e *ParseError) Head() string {
	if len(e.Raw) <= rawHeadLimit {
		return e.Raw
	}
	return e.Raw[:rawHeadLimit]
}
