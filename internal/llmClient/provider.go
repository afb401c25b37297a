package llmclient

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a vendor adapter.
type Options struct {
	Provider   string // gemini, groq, ollama or fake
	Model      string
	APIKey     string
	OllamaHost string
}

// Open builds the adapter named by opts.Provider.
func Open(ctx context.Context, opts Options) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	case "groq":
		return NewGroqClient(opts.APIKey, opts.Model), nil
	case "ollama":
		return NewOllamaClient(opts.OllamaHost, opts.Model)
	case "fake":
		return NewScripted("I have no project knowledge; this is a canned reply.").RepeatLast(), nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", opts.Provider)
	}
}
