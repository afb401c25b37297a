// Package conversation runs the question-answering loop: it prompts the
// model, resolves the information the model asks for and decides after each
// round whether to continue.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gistloop/internal/directive"
	"gistloop/internal/findings"
	"gistloop/internal/llm"
	llmclient "gistloop/internal/llmClient"
	"gistloop/internal/projectindex"
	"gistloop/internal/resolver"
	"gistloop/internal/reviewer"
	"gistloop/internal/safeio"
	"gistloop/internal/searchcache"
)

// StopReason tells why a conversation ended.
type StopReason int

const (
	Concluded StopReason = iota
	ReviewerConcluded
	MaxRounds
	ModelError
	Canceled
)

func (r StopReason) String() string {
	switch r {
	case Concluded:
		return "concluded"
	case ReviewerConcluded:
		return "reviewer concluded"
	case MaxRounds:
		return "max rounds reached"
	case ModelError:
		return "model error"
	case Canceled:
		return "canceled"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

// Outcome is the best-effort result of a conversation.
type Outcome struct {
	ID       string
	Task     string
	Answer   string
	Rounds   int
	Reason   StopReason
	Findings []findings.Finding
}

type Config struct {
	MaxRounds   int
	ReviewEvery int
	MaxFindings int
	MaxHistory  int
	Resolver    resolver.Config
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 8
	}
	if c.ReviewEvery <= 0 {
		c.ReviewEvery = 2
	}
	if c.MaxFindings <= 0 {
		c.MaxFindings = findings.DefaultMax
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = reviewer.DefaultMaxHistory
	}
	return c
}

// Orchestrator holds what conversations share: the index, the filesystem,
// the models and the static prompt context. Every Run gets fresh state.
type Orchestrator struct {
	idx     *projectindex.Index
	fs      *safeio.SafeFS
	model   llmclient.LLMClient
	review  llmclient.LLMClient
	cfg     Config
	log     *zap.Logger
	context string
}

// New prepares an orchestrator. review may be nil to disable reviews.
func New(idx *projectindex.Index, fsys *safeio.SafeFS, model, review llmclient.LLMClient, cfg Config, log *zap.Logger) (*Orchestrator, error) {
	if idx == nil || fsys == nil || model == nil {
		return nil, errors.New("conversation: index, filesystem and model are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		idx:     idx,
		fs:      fsys,
		model:   model,
		review:  review,
		cfg:     cfg.withDefaults(),
		log:     log,
		context: cachedContext(idx.ToTree(), idx.StaticNotes()),
	}, nil
}

// session is the per-conversation state.
type session struct {
	id       string
	log      *zap.Logger
	query    llm.Querier
	resolver *resolver.Resolver
	cache    *searchcache.Cache
	tracker  *findings.Tracker
	reviewer *reviewer.Reviewer
	missing  map[string]struct{}
}

func (o *Orchestrator) newSession(task Task) (*session, error) {
	id := uuid.NewString()
	log := o.log.With(zap.String("conversation", id), zap.String("task", task.Name))
	cache := searchcache.New()
	res, err := resolver.New(o.idx, o.fs, cache, o.cfg.Resolver, log)
	if err != nil {
		return nil, err
	}
	static := o.context
	if task.FileNotes {
		static = withFileNotes(static, o.idx.FileNotes())
	}
	system := task.System
	if system == "" {
		system = systemPrompt
	}
	var rq llm.Querier
	if o.review != nil {
		rq = llm.Bind(o.review, "", "").WithPhase("review")
	}
	return &session{
		id:       id,
		log:      log,
		query:    llm.Bind(o.model, system, static).WithPhase("conversation"),
		resolver: res,
		cache:    cache,
		tracker:  findings.NewTracker(o.cfg.MaxFindings),
		reviewer: reviewer.New(rq, reviewer.WithMaxHistory(o.cfg.MaxHistory), reviewer.WithLogger(log)),
		missing:  make(map[string]struct{}),
	}, nil
}

func (s *session) missingFiles() []string {
	out := make([]string, 0, len(s.missing))
	for k := range s.missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Run answers a general question about the project.
func (o *Orchestrator) Run(ctx context.Context, question string) (Outcome, error) {
	return o.RunTask(ctx, Ask(question))
}

// RunTask converses until the model stops asking for information, the
// reviewer concludes, the round limit is hit, the model fails or ctx is
// canceled. An error is returned only when no answer was produced at all.
func (o *Orchestrator) RunTask(ctx context.Context, task Task) (Outcome, error) {
	if strings.TrimSpace(task.Question) == "" {
		return Outcome{}, errors.New("conversation: empty question")
	}
	question := task.Question
	s, err := o.newSession(task)
	if err != nil {
		return Outcome{}, err
	}
	s.log.Info("conversation started", zap.Int("max_rounds", o.cfg.MaxRounds))

	var (
		answer, newInfo, finalPrompt string
		suppress                     bool
		human                        = question
		rounds                       int
	)
	finish := func(reason StopReason) Outcome {
		s.log.Info("conversation finished", zap.Stringer("reason", reason), zap.Int("rounds", rounds))
		return Outcome{ID: s.id, Task: task.Name, Answer: answer, Rounds: rounds, Reason: reason, Findings: s.tracker.All()}
	}

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return finish(Canceled), answerOrErr(answer, err)
		}
		prompt := userPrompt(promptInput{
			Iteration:      round,
			Question:       question,
			Findings:       s.tracker,
			Previous:       answer,
			NewInformation: newInfo,
			Suppress:       suppress,
			AbsentKeywords: s.cache.Absent(),
			MissingFiles:   s.missingFiles(),
			FinalPrompt:    finalPrompt,
			Guidelines:     task.Guidelines,
		})
		resp, err := s.query.Query(llm.WithRound(ctx, round), prompt)
		if err != nil {
			if ctx.Err() != nil {
				return finish(Canceled), answerOrErr(answer, ctx.Err())
			}
			s.log.Error("model query failed", zap.Int("round", round), zap.Error(err))
			return finish(ModelError), answerOrErr(answer, fmt.Errorf("conversation: round %d: %w", round, err))
		}
		rounds = round

		s.tracker.Merge(directive.ParseFindings(resp)...)
		ext := directive.Extract(resp)
		answer = ext.Clean
		s.reviewer.Add(human, answer)

		if finalPrompt != "" {
			return finish(ReviewerConcluded), nil
		}
		if ext.Requests.Empty() {
			return finish(Concluded), nil
		}

		res := s.resolver.Resolve(ctx, ext.Requests)
		for _, name := range ext.Requests.Files {
			if contains(res.NotFound, name) {
				s.missing[name] = struct{}{}
			}
		}
		newInfo = res.NewInformation
		suppress = res.Outcome == resolver.LoopDetected
		human = describeRequests(ext.Requests)
		s.log.Info("round resolved",
			zap.Int("round", round),
			zap.Stringer("outcome", res.Outcome),
			zap.Strings("found", res.Found),
			zap.Strings("not_found", res.NotFound))

		if suppress {
			s.log.Warn("request loop detected; withholding request instructions", zap.Int("round", round))
			continue
		}
		if round%o.cfg.ReviewEvery == 0 && round < o.cfg.MaxRounds {
			if cont, fp := s.reviewer.ShouldContinue(ctx); !cont {
				finalPrompt = fp
				if finalPrompt == "" {
					finalPrompt = defaultFinalAnswerPrompt
				}
			}
		}
	}
	return finish(MaxRounds), nil
}

func answerOrErr(answer string, err error) error {
	if answer != "" {
		return nil
	}
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// describeRequests renders what was asked in the last round for the review
// history.
func describeRequests(r directive.Requests) string {
	var lines []string
	if len(r.Keywords) > 0 {
		lines = append(lines, "- Searches: "+strings.Join(r.Keywords, ", "))
	}
	if len(r.Files) > 0 {
		lines = append(lines, "- File contents: "+strings.Join(r.Files, ", "))
	}
	if len(r.Packages) > 0 {
		lines = append(lines, "- Package info: "+strings.Join(r.Packages, ", "))
	}
	return "New information provided:\n" + strings.Join(lines, "\n")
}
