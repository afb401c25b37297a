package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryAfter reads the wait a provider asks for on a 429 response.
// Groq sends retry-after in seconds and, when a quota is exhausted,
// x-ratelimit-reset-{requests,tokens} as Go-style durations ("7.66s").
func retryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("retry-after")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	var wait time.Duration
	for _, pair := range [][2]string{
		{"x-ratelimit-remaining-tokens", "x-ratelimit-reset-tokens"},
		{"x-ratelimit-remaining-requests", "x-ratelimit-reset-requests"},
	} {
		if strings.TrimSpace(h.Get(pair[0])) != "0" {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(h.Get(pair[1]))); err == nil && d > wait {
			wait = d
		}
	}
	return wait
}
