package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 4, cfg.LLM.Retries)
	assert.Equal(t, []string{"src/main/java"}, cfg.Index.Prefixes)
	assert.Equal(t, []string{".java", ".yml", ".properties"}, cfg.Search.Extensions)
	assert.Equal(t, int64(1<<20), cfg.Search.MaxFileSize)
	assert.Equal(t, 8, cfg.Conversation.MaxRounds)
	assert.Equal(t, 2, cfg.Conversation.ReviewEvery)
	assert.Equal(t, "file", cfg.Store.Kind)
}

func TestLoad_ApplicationYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yml := "llm:\n  provider: groq\n  timeout: 30s\nconversation:\n  max_rounds: 5\nindex:\n  prefixes: [src, lib]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application.yml"), []byte(yml), 0o644))
	t.Setenv("GISTLOOP_CONVERSATION_MAX_ROUNDS", "3")
	t.Setenv("GROQ_API_KEY", "gk")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Conversation.MaxRounds)
	assert.Equal(t, []string{"src", "lib"}, cfg.Index.Prefixes)
	assert.Equal(t, "gk", cfg.LLM.APIKey)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("GISTLOOP_LOG_LEVEL=debug\nGISTLOOP_SEARCH_WORKERS=3\n"), 0o644))
	t.Setenv("GISTLOOP_SEARCH_WORKERS", "5")
	// Registered for cleanup so the value godotenv sets does not leak.
	t.Setenv("GISTLOOP_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("GISTLOOP_LOG_LEVEL"))

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Search.Workers)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.Store.Kind = "s3"
	assert.ErrorContains(t, bad.Validate(), "store.s3.endpoint")

	bad = *cfg
	bad.Store.Kind = "postgres"
	assert.ErrorContains(t, bad.Validate(), "store.postgres.dsn")

	bad = *cfg
	bad.Store.Kind = "redis"
	assert.ErrorContains(t, bad.Validate(), "unknown store.kind")

	bad = *cfg
	bad.Conversation.MaxRounds = 0
	assert.Error(t, bad.Validate())
}
