// Package llmclient holds the vendor adapters behind one text-in, text-out
// model interface. Adapters only perform the API call; retries, timeouts,
// rate limiting and logging are applied by middleware in package llm.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is one model call. System and Context are stable across the
// rounds of a conversation; Context carries the project tree and notes.
type Request struct {
	System  string
	Context string
	Prompt  string
}

// Size is the number of prompt bytes sent.
func (r Request) Size() int { return len(r.System) + len(r.Context) + len(r.Prompt) }

type LLMClient interface {
	Name() string
	Query(ctx context.Context, req Request) (string, error)
	Close() error
}

var ErrEmptyResponse = errors.New("llmclient: empty response from model")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// RateLimitError is the only error class retried by llm.Retry.
// RetryAfter is the provider's hint, zero when none was given.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %s)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}
func (e *RateLimitError) Unwrap() error { return e.Err }

func NewRateLimitError(err error, retryAfter time.Duration) error {
	return &RateLimitError{Err: err, RetryAfter: retryAfter}
}

// systemText merges the system prompt and the cached context for vendors
// that take a single system instruction.
func systemText(req Request) string {
	switch {
	case req.Context == "":
		return req.System
	case req.System == "":
		return req.Context
	default:
		return req.System + "\n\n" + req.Context
	}
}
