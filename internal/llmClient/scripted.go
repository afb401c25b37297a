package llmclient

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("llmclient: scripted replies exhausted")

// Reply is one scripted answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays canned replies in order and records every request.
// It backs the provider "fake" and the conversation tests.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []Request
	repeat   bool
}

// NewScripted returns a client answering with texts in order.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// NewScriptedReplies is NewScripted with per-call errors.
func NewScriptedReplies(replies ...Reply) *Scripted {
	return &Scripted{replies: append([]Reply(nil), replies...)}
}

// RepeatLast makes the final reply answer every later request.
func (s *Scripted) RepeatLast() *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = true
	return s
}

func (s *Scripted) Name() string { return "Scripted" }
func (s *Scripted) Close() error { return nil }

func (s *Scripted) Query(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	if n >= len(s.replies) {
		if !s.repeat || len(s.replies) == 0 {
			return "", ErrScriptExhausted
		}
		n = len(s.replies) - 1
	}
	r := s.replies[n]
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
