package llmclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JexSrs/go-ollama"
)

const ollamaDefaultHost = "http://localhost:11434"

// OllamaClient talks to a local Ollama server through its Generate endpoint.
type OllamaClient struct {
	client *ollama.Ollama
	model  string
}

func NewOllamaClient(host, model string) (*OllamaClient, error) {
	if host == "" {
		host = ollamaDefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", host, err)
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaClient{client: ollama.New(*u), model: model}, nil
}

func (o *OllamaClient) Name() string { return "Ollama:" + o.model }
func (o *OllamaClient) Close() error { return nil }

type ollamaResult struct {
	text string
	err  error
}

// Query runs Generate on its own goroutine because the library call takes
// no context; a canceled ctx abandons the result.
func (o *OllamaClient) Query(ctx context.Context, req Request) (string, error) {
	done := make(chan ollamaResult, 1)
	go func() {
		res, err := o.client.Generate(
			o.client.Generate.WithModel(o.model),
			o.client.Generate.WithSystem(systemText(req)),
			o.client.Generate.WithPrompt(req.Prompt),
		)
		if err != nil {
			done <- ollamaResult{err: fmt.Errorf("ollama: generate: %w", err)}
			return
		}
		if !res.Done {
			done <- ollamaResult{err: NewPermanentError(fmt.Errorf("ollama: unexpected streaming response"))}
			return
		}
		done <- ollamaResult{text: strings.TrimSpace(res.Response)}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.text == "" {
			return "", ErrEmptyResponse
		}
		return r.text, nil
	}
}
