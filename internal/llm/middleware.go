// Package llm decorates model clients with the cross-cutting concerns of a
// conversation: retries, timeouts, rate limiting and logging.
package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	llmclient "gistloop/internal/llmClient"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns.
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

type ctxKeyPhase struct{}
type ctxKeyRound struct{}

// WithPhase names the caller of a request ("conversation", "review", ...).
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyPhase{}).(string); ok {
		return v
	}
	return "unknown"
}

// WithRound attaches the conversation round number.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, ctxKeyRound{}, round)
}

func RoundFrom(ctx context.Context) int {
	if v, ok := ctx.Value(ctxKeyRound{}).(int); ok {
		return v
	}
	return 0
}

// -------- Timeout --------

// Timeout bounds every request. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next llmclient.LLMClient
	d    time.Duration
}

func (t *timed) Name() string { return t.next.Name() }
func (t *timed) Close() error { return t.next.Close() }
func (t *timed) Query(ctx context.Context, req llmclient.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Query(ctx, req)
}

// -------- Logging --------

// WithLogging logs request size, latency and errors. A nil logger disables it.
func WithLogging(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: log.With(zap.String("model", next.Name()))}
	}
}

type logging struct {
	next llmclient.LLMClient
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }
func (l *logging) Query(ctx context.Context, req llmclient.Request) (string, error) {
	fields := []zap.Field{
		zap.String("phase", PhaseFrom(ctx)),
		zap.Int("round", RoundFrom(ctx)),
		zap.Int("request_bytes", req.Size()),
	}
	start := time.Now()
	out, err := l.next.Query(ctx, req)
	fields = append(fields, zap.Duration("latency", time.Since(start)))
	if err != nil {
		l.log.Warn("LLM error", append(fields, zap.Error(err))...)
		return out, err
	}
	l.log.Debug("LLM response", append(fields, zap.Int("response_bytes", len(out)))...)
	return out, nil
}
