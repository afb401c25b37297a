// Package reviewer asks a secondary model whether a conversation is still
// making progress. It never fails the caller: any error or unreadable reply
// is treated as a recommendation to continue.
package reviewer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gistloop/internal/llm"
)

type Recommendation string

const (
	Continue Recommendation = "CONTINUE"
	Conclude Recommendation = "CONCLUDE"
)

// DefaultMaxHistory is the number of turns kept for review.
const DefaultMaxHistory = 10

// Turn is one exchange of the reviewed conversation.
type Turn struct {
	Human string
	AI    string
}

// Verdict is the parsed review. EfficiencyScore is 0 when absent.
type Verdict struct {
	Recommendation    Recommendation
	Reason            string
	EfficiencyScore   int
	FinalAnswerPrompt string
}

type Reviewer struct {
	q          llm.Querier
	maxHistory int
	log        *zap.Logger

	mu    sync.Mutex
	turns []Turn
}

type Option func(*Reviewer)

// WithMaxHistory caps the number of turns kept; n <= 0 keeps the default.
func WithMaxHistory(n int) Option {
	return func(r *Reviewer) {
		if n > 0 {
			r.maxHistory = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Reviewer) {
		if log != nil {
			r.log = log
		}
	}
}

func New(q llm.Querier, opts ...Option) *Reviewer {
	r := &Reviewer{q: q, maxHistory: DefaultMaxHistory, log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add appends a turn, dropping the oldest beyond the cap.
func (r *Reviewer) Add(human, ai string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, Turn{Human: human, AI: ai})
	if over := len(r.turns) - r.maxHistory; over > 0 {
		r.turns = append([]Turn(nil), r.turns[over:]...)
	}
}

func (r *Reviewer) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.turns...)
}

// Summary renders the kept turns, numbered from 1.
func (r *Reviewer) Summary() string {
	var b strings.Builder
	for i, t := range r.Turns() {
		fmt.Fprintf(&b, "Round %d:\nHuman: %s\nAI: %s\n\n", i+1, t.Human, t.AI)
	}
	return b.String()
}

// Review queries the review model. Query failures yield Continue.
func (r *Reviewer) Review(ctx context.Context) Verdict {
	if r.q == nil {
		return Verdict{Recommendation: Continue}
	}
	prompt := fmt.Sprintf(reviewPromptTemplate, r.Summary())
	reply, err := r.q.Query(ctx, prompt)
	if err != nil {
		r.log.Warn("review query failed; continuing", zap.Error(err))
		return Verdict{Recommendation: Continue}
	}
	v := ParseVerdict(reply)
	r.log.Info("conversation reviewed",
		zap.String("recommendation", string(v.Recommendation)),
		zap.Int("efficiency", v.EfficiencyScore),
		zap.String("reason", v.Reason))
	return v
}

// ShouldContinue reports false, with the final-answer prompt, only when
// the reviewer recommends concluding.
func (r *Reviewer) ShouldContinue(ctx context.Context) (bool, string) {
	v := r.Review(ctx)
	if v.Recommendation == Conclude {
		return false, v.FinalAnswerPrompt
	}
	return true, ""
}

var (
	reRecommendation = regexp.MustCompile(`(?i)RECOMMENDATION\**\s*:[\s*\[]*(\w+)`)
	reReason         = regexp.MustCompile(`(?i)REASON\**\s*:[ \t*]*([^\n]+)`)
	reScore          = regexp.MustCompile(`(?i)EFFICIENCY_SCORE\**\s*:[\s*\[]*(\d+)`)
	reFinalPrompt    = regexp.MustCompile(`(?is)FINAL_ANSWER_PROMPT\**\s*:\s*(.+)`)
)

// ParseVerdict reads a review reply, tolerating bold markup and any case.
// Without a recognizable recommendation the verdict is Continue.
func ParseVerdict(reply string) Verdict {
	v := Verdict{Recommendation: Continue}
	if m := reRecommendation.FindStringSubmatch(reply); m != nil &&
		strings.EqualFold(m[1], string(Conclude)) {
		v.Recommendation = Conclude
	}
	if m := reReason.FindStringSubmatch(reply); m != nil {
		v.Reason = strings.Trim(strings.TrimSpace(m[1]), "*[]")
	}
	if m := reScore.FindStringSubmatch(reply); m != nil {
		v.EfficiencyScore, _ = strconv.Atoi(m[1])
	}
	if v.Recommendation == Conclude {
		if m := reFinalPrompt.FindStringSubmatch(reply); m != nil {
			v.FinalAnswerPrompt = strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), "*[]"))
		}
	}
	return v
}
