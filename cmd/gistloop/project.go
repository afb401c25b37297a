package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gistloop/internal/llm"
	llmclient "gistloop/internal/llmClient"
	"gistloop/internal/projectindex"
)

// projectRoot resolves the positional root argument and requires it to be
// an existing directory.
func projectRoot(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root %s: %w", arg, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", arg)
	}
	return abs, nil
}

type closer interface{ Close() error }

// openStore returns the configured snapshot store for the project.
func openStore(root string) (projectindex.Store, func(), error) {
	project := filepath.Base(root)
	switch strings.ToLower(cfg.Store.Kind) {
	case "s3":
		s, err := projectindex.NewS3Store(projectindex.S3Config{
			Endpoint:  cfg.Store.S3.Endpoint,
			Region:    cfg.Store.S3.Region,
			AccessKey: cfg.Store.S3.AccessKey,
			SecretKey: cfg.Store.S3.SecretKey,
			Bucket:    cfg.Store.S3.Bucket,
			Prefix:    project,
			UseSSL:    cfg.Store.S3.UseSSL,
		})
		return s, func() {}, err
	case "postgres":
		s, err := projectindex.NewPostgresStore(cfg.Store.Postgres.DSN, project)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, func() { closeQuietly(s) }, nil
	default:
		return projectindex.NewFileStore(root), func() {}, nil
	}
}

func closeQuietly(c closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", zap.Error(err))
	}
}

// loadIndex builds a fresh index and carries over the summaries of the last
// snapshot, so renamed or deleted files drop out while notes survive.
func loadIndex(ctx context.Context, root string, store projectindex.Store) (*projectindex.Index, error) {
	idx, err := projectindex.Build(root, cfg.Index.Prefixes, cfg.Index.Suffixes, logger)
	if err != nil {
		return nil, err
	}
	prev, err := store.Load(ctx)
	switch {
	case errors.Is(err, projectindex.ErrNoSnapshot):
		logger.Info("no snapshot yet, starting from a fresh index", zap.String("root", root))
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	default:
		idx.MergeSummaries(prev)
	}
	logger.Info("project indexed", zap.String("root", root), zap.Int("files", idx.Len()))
	return idx, nil
}

// openModel builds a vendor client wrapped in the shared middleware stack.
// An empty model name falls back to the main model.
func openModel(ctx context.Context, model string) (llmclient.LLMClient, error) {
	if model == "" {
		model = cfg.LLM.Model
	}
	c, err := llmclient.Open(ctx, llmclient.Options{
		Provider:   cfg.LLM.Provider,
		Model:      model,
		APIKey:     cfg.LLM.APIKey,
		OllamaHost: cfg.Ollama.Host,
	})
	if err != nil {
		return nil, err
	}
	return llm.Wrap(c,
		llm.WithLogging(logger),
		llm.Retry(cfg.LLM.Retries, cfg.LLM.RetryBase),
		llm.Timeout(cfg.LLM.Timeout),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
	), nil
}
