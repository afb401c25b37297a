package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	llmclient "gistloop/internal/llmClient"
)

func TestRate_RPS_2PerSecond_Burst1_Spacing(t *testing.T) {
	// Expect ~>=500ms spacing after the first call when rps=2 and burst=1.
	inner := llmclient.NewScripted("a").RepeatLast()
	cli := Wrap(inner, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := cli.Query(ctx, llmclient.Request{Prompt: "p"}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 450*time.Millisecond {
		t.Fatalf("expected throttling >=450ms, got %v", elapsed)
	}
	if n := len(inner.Requests()); n != 2 {
		t.Fatalf("two calls should reach inner client, got %d", n)
	}
}

func TestRate_Burst2_FirstTwoImmediate(t *testing.T) {
	cli := RateLimit(2, 2)(llmclient.NewScripted("a").RepeatLast())
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := cli.Query(ctx, llmclient.Request{}); err != nil {
			t.Fatal(err)
		}
	}
	if firstTwo := time.Since(start); firstTwo > 100*time.Millisecond {
		t.Fatalf("first two should be near-instant, got %v", firstTwo)
	}
}

func TestRate_DisabledWhenRPSZero(t *testing.T) {
	if l := newLimiter(0, 5); l != nil {
		t.Fatalf("expected nil limiter")
	}
	cli := RateLimit(0, 0)(llmclient.NewScripted("a"))
	if _, err := cli.Query(context.Background(), llmclient.Request{}); err != nil {
		t.Fatal(err)
	}
	_ = cli.Close()
}

func TestRate_WaitHonorsContext(t *testing.T) {
	inner := llmclient.NewScripted("a").RepeatLast()
	cli := RateLimit(0.1, 1)(inner)
	defer cli.Close()
	if _, err := cli.Query(context.Background(), llmclient.Request{}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cli.Query(ctx, llmclient.Request{}); err == nil {
		t.Fatalf("expected context error while bucket is empty")
	}
	if n := len(inner.Requests()); n != 1 {
		t.Fatalf("throttled call must not reach inner client, got %d calls", n)
	}
}

func TestRate_CloseWakesWaiters(t *testing.T) {
	cli := RateLimit(0.1, 1)(llmclient.NewScripted("a").RepeatLast())
	if _, err := cli.Query(context.Background(), llmclient.Request{}); err != nil {
		t.Fatal(err)
	}
	// No deadline, so the wait is only cut short by Close.
	done := make(chan error, 1)
	go func() {
		_, err := cli.Query(context.Background(), llmclient.Request{})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = cli.Close()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled after Close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not wake the waiter")
	}
}
