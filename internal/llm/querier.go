package llm

import (
	"context"

	llmclient "gistloop/internal/llmClient"
)

// Querier is the model capability the conversation core depends on:
// prompt in, text out.
type Querier interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// Bound fixes the system prompt and cached context of every request.
type Bound struct {
	Client  llmclient.LLMClient
	System  string
	Context string
	Phase   string
}

// Bind returns a Querier sending system and cachedContext with each prompt.
func Bind(c llmclient.LLMClient, system, cachedContext string) *Bound {
	return &Bound{Client: c, System: system, Context: cachedContext}
}

// WithPhase returns a copy tagging its requests with phase for logging.
func (b *Bound) WithPhase(phase string) *Bound {
	cp := *b
	cp.Phase = phase
	return &cp
}

func (b *Bound) Query(ctx context.Context, prompt string) (string, error) {
	if b.Phase != "" {
		ctx = WithPhase(ctx, b.Phase)
	}
	return b.Client.Query(ctx, llmclient.Request{System: b.System, Context: b.Context, Prompt: prompt})
}

// QuerierFunc adapts a function to Querier.
type QuerierFunc func(ctx context.Context, prompt string) (string, error)

func (f QuerierFunc) Query(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
