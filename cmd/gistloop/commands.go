package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gistloop/internal/conversation"
	llmclient "gistloop/internal/llmClient"
	"gistloop/internal/resolver"
	"gistloop/internal/safeio"
	"gistloop/internal/summarize"
)

var (
	question   string
	apiRequest string
	maxRounds  int
	expand     bool
	outFile    string
)

var askCmd = &cobra.Command{
	Use:   "ask <project_root>",
	Short: "Answer a question about the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(cmd, args[0], conversation.Ask)
	},
}

var aboutCmd = &cobra.Command{
	Use:   "about <project_root>",
	Short: "Explore a topic of the project and summarize it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(cmd, args[0], conversation.TellMeAbout)
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <project_root>",
	Short: "Trace one API request from the handler to the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(apiRequest) == "" {
			return errors.New("--api-request must not be empty")
		}
		return converse(cmd, args[0], func(string) conversation.Task {
			return conversation.TraceAPIRequest(apiRequest)
		})
	},
}

var apisCmd = &cobra.Command{
	Use:   "apis <project_root>",
	Short: "Write notes on every API endpoint of the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(cmd, args[0], func(string) conversation.Task {
			return conversation.SummarizeAPI()
		})
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Rewrite a question into a more thorough one",
	Args:  cobra.NoArgs,
	RunE:  runExpand,
}

var indexCmd = &cobra.Command{
	Use:   "index <project_root>",
	Short: "Index the project and save the snapshot, keeping existing notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <project_root>",
	Short: "Write notes for changed files and all packages, then save the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

var treeCmd = &cobra.Command{
	Use:   "tree <project_root>",
	Short: "Print the namespace tree of the project",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

func conversationFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "maximum conversation rounds (default from config, 8)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "also write the answer to this markdown file")
}

func init() {
	for _, c := range []*cobra.Command{askCmd, aboutCmd} {
		c.Flags().StringVarP(&question, "question", "q", "", "the question to answer")
		c.Flags().BoolVar(&expand, "expand", false, "let the model expand the question first")
		_ = c.MarkFlagRequired("question")
	}
	traceCmd.Flags().StringVarP(&apiRequest, "api-request", "r", "", `the request to trace, for example "GET /cities/{name}"`)
	_ = traceCmd.MarkFlagRequired("api-request")
	for _, c := range []*cobra.Command{askCmd, aboutCmd, traceCmd, apisCmd} {
		conversationFlags(c)
	}
	expandCmd.Flags().StringVarP(&question, "question", "q", "", "the question to expand")
	_ = expandCmd.MarkFlagRequired("question")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// converse runs one conversation task against the project at arg.
func converse(cmd *cobra.Command, arg string, task func(question string) conversation.Task) error {
	root, err := projectRoot(arg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, done, err := openStore(root)
	if err != nil {
		return err
	}
	defer done()
	idx, err := loadIndex(ctx, root, store)
	if err != nil {
		return err
	}
	fsys, err := safeio.New(root)
	if err != nil {
		return err
	}

	model, err := openModel(ctx, cfg.LLM.Model)
	if err != nil {
		return err
	}
	defer model.Close()
	var review llmclient.LLMClient
	if cfg.Reviewer.Enabled {
		if review, err = openModel(ctx, cfg.LLM.ReviewModel); err != nil {
			return err
		}
		defer review.Close()
	}

	q := question
	if expand {
		q = expandQuestion(ctx, cmd, model, q)
	}

	rounds := cfg.Conversation.MaxRounds
	if maxRounds > 0 {
		rounds = maxRounds
	}
	orch, err := conversation.New(idx, fsys, model, review, conversation.Config{
		MaxRounds:   rounds,
		ReviewEvery: cfg.Conversation.ReviewEvery,
		MaxFindings: cfg.Conversation.MaxFindings,
		MaxHistory:  cfg.Reviewer.MaxHistory,
		Resolver: resolver.Config{
			Extensions:  cfg.Search.Extensions,
			MaxFiles:    cfg.Search.MaxFiles,
			MaxFileSize: cfg.Search.MaxFileSize,
			Workers:     cfg.Search.Workers,
		},
	}, logger)
	if err != nil {
		return err
	}

	out, err := orch.RunTask(ctx, task(q))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Answer)
	if out.Reason == conversation.MaxRounds {
		fmt.Fprintf(w, "\n(max rounds reached after %d rounds, this is the best answer so far)\n", out.Rounds)
	}
	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(out.Answer+"\n"), 0o644); err != nil {
			return fmt.Errorf("write answer: %w", err)
		}
	}
	logger.Info("answered",
		zap.String("conversation", out.ID),
		zap.String("task", out.Task),
		zap.Stringer("reason", out.Reason),
		zap.Int("rounds", out.Rounds))
	return nil
}

// expandQuestion falls back to the original question when the model gives
// no usable expansion.
func expandQuestion(ctx context.Context, cmd *cobra.Command, model llmclient.LLMClient, q string) string {
	expanded, err := conversation.ExpandQuestion(ctx, model, q)
	if err != nil {
		logger.Warn("question not expanded, using it as asked", zap.Error(err))
		return q
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Expanded question:\n%s\n\n", expanded)
	return expanded
}

func runExpand(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	model, err := openModel(ctx, cfg.LLM.Model)
	if err != nil {
		return err
	}
	defer model.Close()
	expanded, err := conversation.ExpandQuestion(ctx, model, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), expanded)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	store, done, err := openStore(root)
	if err != nil {
		return err
	}
	defer done()
	idx, err := loadIndex(ctx, root, store)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, idx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files\n", idx.Len())
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	store, done, err := openStore(root)
	if err != nil {
		return err
	}
	defer done()
	idx, err := loadIndex(ctx, root, store)
	if err != nil {
		return err
	}
	fsys, err := safeio.New(root)
	if err != nil {
		return err
	}
	model, err := openModel(ctx, cfg.LLM.Model)
	if err != nil {
		return err
	}
	defer model.Close()

	s := summarize.New(model, fsys,
		summarize.WithWorkers(cfg.Summarize.Workers),
		summarize.WithMaxFileSize(cfg.Search.MaxFileSize),
		summarize.WithLogger(logger))
	stats, err := s.Files(ctx, idx)
	// Keep whatever was summarized before a failure.
	if saveErr := store.Save(context.WithoutCancel(ctx), idx); saveErr != nil {
		logger.Error("save snapshot failed", zap.Error(saveErr))
	}
	if err != nil {
		return err
	}
	if err := s.Packages(ctx, idx); err != nil {
		return err
	}
	if err := store.Save(ctx, idx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "summarized %d files (%d unchanged)\n", stats.Summarized, stats.Skipped)
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args[0])
	if err != nil {
		return err
	}
	store, done, err := openStore(root)
	if err != nil {
		return err
	}
	defer done()
	idx, err := loadIndex(cmd.Context(), root, store)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), idx.ToTree())
	return nil
}
