package reviewer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gistloop/internal/llm"
	llmclient "gistloop/internal/llmClient"
)

func TestShouldContinue_Conclude(t *testing.T) {
	q := llm.Bind(llmclient.NewScripted("Analysis...\nRECOMMENDATION: CONCLUDE\nREASON: enough\nFINAL_ANSWER_PROMPT: Summarize now."), "", "")
	r := New(q)
	r.Add("What does the project do?", "It manages cities.")

	cont, prompt := r.ShouldContinue(context.Background())
	assert.False(t, cont)
	assert.Equal(t, "Summarize now.", prompt)
}

func TestShouldContinue_QueryErrorFailsOpen(t *testing.T) {
	q := llm.QuerierFunc(func(context.Context, string) (string, error) { return "", errors.New("boom") })
	cont, prompt := New(q).ShouldContinue(context.Background())
	assert.True(t, cont)
	assert.Empty(t, prompt)
}

func TestParseVerdict_Tolerant(t *testing.T) {
	v := ParseVerdict("**RECOMMENDATION**: conclude\n**REASON**: the AI has the data\n**EFFICIENCY_SCORE**: 7\n**FINAL_ANSWER_PROMPT**: Give the final answer.\n")
	assert.Equal(t, Conclude, v.Recommendation)
	assert.Equal(t, "the AI has the data", v.Reason)
	assert.Equal(t, 7, v.EfficiencyScore)
	assert.Equal(t, "Give the final answer.", v.FinalAnswerPrompt)

	v = ParseVerdict("RECOMMENDATION: [CONCLUDE]\nFINAL_ANSWER_PROMPT: [Wrap up]")
	assert.Equal(t, Conclude, v.Recommendation)
	assert.Equal(t, "Wrap up", v.FinalAnswerPrompt)
}

func TestParseVerdict_DefaultsToContinue(t *testing.T) {
	for _, reply := range []string{"", "I think it is fine.", "RECOMMENDATION: REDIRECT", "RECOMMENDATION: CONTINUE\nFINAL_ANSWER_PROMPT: ignored"} {
		v := ParseVerdict(reply)
		assert.Equal(t, Continue, v.Recommendation, reply)
		assert.Empty(t, v.FinalAnswerPrompt, reply)
	}
}

func TestAdd_KeepsMostRecentTurns(t *testing.T) {
	r := New(nil)
	for i := 1; i <= 12; i++ {
		r.Add(fmt.Sprintf("h%d", i), fmt.Sprintf("a%d", i))
	}
	turns := r.Turns()
	require.Len(t, turns, DefaultMaxHistory)
	assert.Equal(t, "h3", turns[0].Human)
	assert.Equal(t, "a12", turns[9].AI)

	small := New(nil, WithMaxHistory(2))
	small.Add("h1", "a1")
	small.Add("h2", "a2")
	small.Add("h3", "a3")
	assert.Equal(t, "Round 1:\nHuman: h2\nAI: a2\n\nRound 2:\nHuman: h3\nAI: a3\n\n", small.Summary())
}

func TestReview_EmbedsHistoryInPrompt(t *testing.T) {
	s := llmclient.NewScripted("RECOMMENDATION: CONTINUE\nEFFICIENCY_SCORE: 4")
	r := New(llm.Bind(s, "", ""))
	r.Add("question", "answer")
	v := r.Review(context.Background())
	assert.Equal(t, Continue, v.Recommendation)
	assert.Equal(t, 4, v.EfficiencyScore)
	require.Len(t, s.Requests(), 1)
	assert.Contains(t, s.Requests()[0].Prompt, "Round 1:\nHuman: question\nAI: answer\n\n")
}
