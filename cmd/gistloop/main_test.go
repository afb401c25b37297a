package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gistloop/internal/conversation"
	"gistloop/internal/projectindex"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	question, apiRequest, maxRounds, expand, outFile = "", "", 0, false, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProjectRoot_Missing(t *testing.T) {
	_, err := projectRoot(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err = projectRoot(f)
	assert.ErrorContains(t, err, "not a directory")
}

func TestTreeAndIndexCommands(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityService.java", "class CityService {}")

	out, err := execute(t, "tree", root)
	require.NoError(t, err)
	assert.Contains(t, out, "com.iky.travel/")
	assert.Contains(t, out, "CityService.java")

	out, err = execute(t, "index", root)
	require.NoError(t, err)
	assert.Equal(t, "indexed 1 files\n", out)
	assert.FileExists(t, filepath.Join(root, "code_files.txt"))
}

func TestAskWithFakeProvider(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	t.Setenv("GISTLOOP_LLM_PROVIDER", "fake")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityService.java", "class CityService {}")

	out, err := execute(t, "ask", root, "--question", "What does it do?", "--max-rounds", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "canned reply")
}

func TestAskMissingRootFails(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	_, err := execute(t, "ask", filepath.Join(t.TempDir(), "missing"), "--question", "q")
	assert.Error(t, err)
}

func TestLoadIndex_FreshBuildKeepsStoredNotes(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityService.java", "class CityService {}")
	write(t, root, "src/main/java/com/iky/travel/Gone.java", "class Gone {}")
	_, err := execute(t, "index", root)
	require.NoError(t, err)

	ctx := context.Background()
	store := projectindex.NewFileStore(root)
	prev, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, prev.SetFileSummary("CityService.java", "com.iky.travel", "Caches cities.", ""))
	prev.SetNamespaceSummary("com.iky.travel", "Travel domain.")
	require.NoError(t, store.Save(ctx, prev))

	require.NoError(t, os.Remove(filepath.Join(root, "src/main/java/com/iky/travel/Gone.java")))
	write(t, root, "src/main/java/com/iky/travel/Added.java", "class Added {}")

	idx, err := loadIndex(ctx, root, store)
	require.NoError(t, err)
	var names []string
	for _, f := range idx.Files() {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Added.java", "CityService.java"}, names)
	f, ok := idx.FindFile("CityService.java", "com.iky.travel")
	require.True(t, ok)
	assert.Equal(t, "Caches cities.", f.Summary)
	assert.Equal(t, "Travel domain.", idx.NamespaceSummaries()["com.iky.travel"])
}

func TestLoadIndex_NoSnapshotIsFreshStart(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityService.java", "class CityService {}")
	_, err := execute(t, "tree", root)
	require.NoError(t, err)

	idx, err := loadIndex(context.Background(), root, projectindex.NewFileStore(root))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestTaskCommandsWithFakeProvider(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	t.Setenv("GISTLOOP_LLM_PROVIDER", "fake")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityController.java", "class CityController {}")

	out, err := execute(t, "trace", root, "--api-request", "GET /cities/{name}", "--max-rounds", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "canned reply")

	notes := filepath.Join(t.TempDir(), "api_notes.md")
	_, err = execute(t, "apis", root, "--out", notes)
	require.NoError(t, err)
	data, err := os.ReadFile(notes)
	require.NoError(t, err)
	assert.Contains(t, string(data), "canned reply")

	out, err = execute(t, "about", root, "-q", "How are cities cached?")
	require.NoError(t, err)
	assert.Contains(t, out, "canned reply")
}

func TestTraceRequiresAPIRequest(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	_, err := execute(t, "trace", t.TempDir())
	assert.ErrorContains(t, err, "api-request")
}

func TestAskExpandFallsBackToQuestion(t *testing.T) {
	t.Setenv("GISTLOOP_LOG_LEVEL", "error")
	t.Setenv("GISTLOOP_LLM_PROVIDER", "fake")
	root := t.TempDir()
	write(t, root, "src/main/java/com/iky/travel/CityService.java", "class CityService {}")

	// The canned reply has no expanded question, so the question is used as asked.
	out, err := execute(t, "ask", root, "-q", "What does it do?", "--expand")
	require.NoError(t, err)
	assert.NotContains(t, out, "Expanded question:")
	assert.Contains(t, out, "canned reply")

	_, err = execute(t, "expand", "-q", "What does it do?")
	assert.ErrorIs(t, err, conversation.ErrNoExpansion)
}
