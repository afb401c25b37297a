package llmclient

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryAfter_Seconds(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "2")
	h.Set("x-ratelimit-remaining-tokens", "0")
	h.Set("x-ratelimit-reset-tokens", "7.66s")
	if got := retryAfter(h); got != 2*time.Second {
		t.Fatalf("retry-after wait: got=%s", got)
	}
}

func TestRetryAfter_ExhaustedQuotaUsesLongestReset(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-remaining-requests", "0")
	h.Set("x-ratelimit-reset-requests", "2m59.56s")
	h.Set("x-ratelimit-remaining-tokens", "0")
	h.Set("x-ratelimit-reset-tokens", "7.66s")
	want := 2*time.Minute + 59*time.Second + 560*time.Millisecond
	if got := retryAfter(h); got != want {
		t.Fatalf("reset wait: got=%s want=%s", got, want)
	}
}

func TestRetryAfter_QuotaLeft(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-remaining-tokens", "17997")
	h.Set("x-ratelimit-reset-tokens", "7.66s")
	if got := retryAfter(h); got != 0 {
		t.Fatalf("no wait expected: got=%s", got)
	}
}
