package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gistloop/internal/llm"
	llmclient "gistloop/internal/llmClient"
)

// ErrNoExpansion is returned when the model reply carries no expanded
// question.
var ErrNoExpansion = errors.New("conversation: reply has no expanded question")

const (
	expandOpen  = "<Expanded_Question>"
	expandClose = "</Expanded_Question>"
)

const expandSystemPrompt = `You are an AI assistant that expands and refines questions developers ask about a software project.`

const expandPromptTemplate = `Original Question: %s

Rewrite this question into a more comprehensive and specific one. It will be used to investigate a project whose files and packages have short notes, so the developer can plan maintenance work.

Consider the areas the developer may have missed:
- project structure and architecture
- design patterns in use
- performance, scalability and maintainability
- testing and quality assurance
- integration with other systems or libraries
- security
- readability and documentation

Use the terminology of the language and frameworks involved. If the question is vague, make it specific using common scenarios. Cover both high-level architecture and low-level implementation details, and point out areas that need special attention.

Answer in this format:

Original Question: [the original question]

<Expanded_Question>
[one or two paragraphs, or a series of related questions]

Key Areas to Explore:
- [area]

Potential Challenges to Consider:
- [challenge]
</Expanded_Question>`

// ExpandQuestion asks the model to rewrite question into a fuller one
// before a conversation starts.
func ExpandQuestion(ctx context.Context, model llmclient.LLMClient, question string) (string, error) {
	q := llm.Bind(model, expandSystemPrompt, "").WithPhase("expand_question")
	resp, err := q.Query(ctx, fmt.Sprintf(expandPromptTemplate, strings.TrimSpace(question)))
	if err != nil {
		return "", fmt.Errorf("conversation: expand question: %w", err)
	}
	return parseExpansion(resp)
}

// parseExpansion returns the text between the expansion tags. A missing
// closing tag takes the rest of the reply.
func parseExpansion(resp string) (string, error) {
	start := strings.Index(resp, expandOpen)
	if start < 0 {
		return "", ErrNoExpansion
	}
	body := resp[start+len(expandOpen):]
	if end := strings.Index(body, expandClose); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrNoExpansion
	}
	return body, nil
}
