package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	llmclient "gistloop/internal/llmClient"
)

// Retry retries rate-limited requests up to maxAttempts with exponential
// backoff starting at baseDelay. A provider RetryAfter hint longer than the
// backoff wins. Any other error is returned at once.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next llmclient.LLMClient
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

// hinted stretches the next delay to the provider's RetryAfter hint.
type hinted struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hinted) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next != backoff.Stop && h.hint > next {
		next = h.hint
	}
	h.hint = 0
	return next
}

func (r *retrying) policy(ctx context.Context) (*hinted, backoff.BackOff) {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.base),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
		backoff.WithMaxElapsedTime(0),
	)
	h := &hinted{BackOff: exp}
	return h, backoff.WithContext(backoff.WithMaxRetries(h, uint64(r.max-1)), ctx)
}

func (r *retrying) Query(ctx context.Context, req llmclient.Request) (string, error) {
	h, b := r.policy(ctx)
	return backoff.RetryWithData(func() (string, error) {
		out, err := r.next.Query(ctx, req)
		if err == nil {
			return out, nil
		}
		var rl *llmclient.RateLimitError
		if !errors.As(err, &rl) {
			return "", backoff.Permanent(err)
		}
		h.hint = rl.RetryAfter
		return "", err
	}, b)
}
