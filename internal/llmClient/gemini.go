package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient creates a client for model. An empty apiKey falls back to
// GEMINI_API_KEY.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) Query(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if sys := systemText(req); sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return "", ErrEmptyResponse
	}
	return txt, nil
}

// classifyGeminiError maps API status codes onto the retry taxonomy.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("gemini: %w", err)
	}
	wrapped := fmt.Errorf("gemini: %w", err)
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return NewRateLimitError(wrapped, 0)
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return NewPermanentError(wrapped)
	}
	return wrapped
}
