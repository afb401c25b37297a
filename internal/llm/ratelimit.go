package llm

import (
	"context"

	"golang.org/x/time/rate"

	llmclient "gistloop/internal/llmClient"
)

// newLimiter returns nil when rps <= 0, which disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimit throttles requests to rps with the given burst.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		closed, stop := context.WithCancel(context.Background())
		return &rateLimited{next: next, lim: newLimiter(rps, burst), closed: closed, stop: stop}
	}
}

type rateLimited struct {
	next   llmclient.LLMClient
	lim    *rate.Limiter
	closed context.Context // done once Close is called
	stop   context.CancelFunc
}

func (c *rateLimited) Name() string { return c.next.Name() }

// Close wakes every caller still waiting for a slot.
func (c *rateLimited) Close() error {
	c.stop()
	return c.next.Close()
}

func (c *rateLimited) Query(ctx context.Context, req llmclient.Request) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return c.next.Query(ctx, req)
}

func (c *rateLimited) wait(ctx context.Context) error {
	if c.lim == nil {
		return ctx.Err()
	}
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unwatch := context.AfterFunc(c.closed, cancel)
	defer unwatch()
	if err := c.lim.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.closed.Err() != nil {
			return context.Canceled
		}
		return err
	}
	return nil
}
