package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	llmclient "gistloop/internal/llmClient"
)

func rateLimited(after time.Duration) llmclient.Reply {
	return llmclient.Reply{Err: llmclient.NewRateLimitError(errors.New("429"), after)}
}

func TestRetry_RetriesRateLimitThenSucceeds(t *testing.T) {
	inner := llmclient.NewScriptedReplies(rateLimited(0), rateLimited(0), llmclient.Reply{Text: "ok"})
	cli := Wrap(inner, Retry(4, time.Millisecond))

	out, err := cli.Query(context.Background(), llmclient.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Len(t, inner.Requests(), 3)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := llmclient.NewScriptedReplies(rateLimited(0), rateLimited(0), rateLimited(0))
	_, err := Retry(2, time.Millisecond)(inner).Query(context.Background(), llmclient.Request{})
	var rl *llmclient.RateLimitError
	assert.True(t, errors.As(err, &rl))
	assert.Len(t, inner.Requests(), 2)
}

func TestRetry_DoesNotRetryOtherErrors(t *testing.T) {
	hard := llmclient.NewPermanentError(errors.New("401"))
	inner := llmclient.NewScriptedReplies(llmclient.Reply{Err: hard}, llmclient.Reply{Text: "never"})
	_, err := Retry(4, time.Millisecond)(inner).Query(context.Background(), llmclient.Request{})
	assert.ErrorIs(t, err, hard)
	assert.Len(t, inner.Requests(), 1)

	plain := errors.New("connection reset")
	inner = llmclient.NewScriptedReplies(llmclient.Reply{Err: plain})
	_, err = Retry(4, time.Millisecond)(inner).Query(context.Background(), llmclient.Request{})
	assert.ErrorIs(t, err, plain)
}

func TestRetry_HonorsRetryAfterAndContext(t *testing.T) {
	inner := llmclient.NewScriptedReplies(rateLimited(time.Hour), llmclient.Reply{Text: "late"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Retry(3, time.Millisecond)(inner).Query(ctx, llmclient.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetry_WaitsAtLeastRetryAfter(t *testing.T) {
	inner := llmclient.NewScriptedReplies(rateLimited(60*time.Millisecond), llmclient.Reply{Text: "ok"})
	start := time.Now()
	out, err := Retry(2, time.Millisecond)(inner).Query(context.Background(), llmclient.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

type slowClient struct{}

func (slowClient) Name() string { return "slow" }
func (slowClient) Close() error { return nil }
func (slowClient) Query(ctx context.Context, _ llmclient.Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "done", nil
	}
}

func TestTimeout_BoundsEachRequest(t *testing.T) {
	cli := Wrap(slowClient{}, Timeout(20*time.Millisecond))
	_, err := cli.Query(context.Background(), llmclient.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogging_RecordsPhaseRoundAndErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	inner := llmclient.NewScriptedReplies(llmclient.Reply{Text: "hi"}, llmclient.Reply{Err: errors.New("boom")})
	cli := Wrap(inner, WithLogging(zap.New(core)))

	ctx := WithRound(WithPhase(context.Background(), "conversation"), 3)
	_, _ = cli.Query(ctx, llmclient.Request{Prompt: "12345"})
	_, _ = cli.Query(ctx, llmclient.Request{Prompt: "x"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "LLM response", entries[0].Message)
	assert.Equal(t, int64(5), entries[0].ContextMap()["request_bytes"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["round"])
	assert.Equal(t, "conversation", entries[0].ContextMap()["phase"])
	assert.Equal(t, "LLM error", entries[1].Message)
}

func TestBind_SendsSystemAndContext(t *testing.T) {
	inner := llmclient.NewScripted("answer")
	q := Bind(inner, "sys", "tree").WithPhase("review")
	out, err := q.Query(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, []llmclient.Request{{System: "sys", Context: "tree", Prompt: "prompt"}}, inner.Requests())
}
