// Package summarize writes the file and package notes stored in the project
// index. Files are summarized from their code; packages bottom-up from the
// notes of their files and sub-packages.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gistloop/internal/llm"
	llmclient "gistloop/internal/llmClient"
	"gistloop/internal/projectindex"
	"gistloop/internal/safeio"
)

const fileSystemPrompt = `You are an experienced developer maintaining an existing code base. Read the code and write notes about it.
The notes should be short, concise and to the point.
Make sure to include:
- The purpose of the code
- The functionality of the code
- The important types and functions used in the code`

const fileUserPrompt = `
Just return the notes. DO NOT explain your reason.

File Name: %s

Package: %s

Code:

%s
`

const packageSystemPrompt = `You are an experienced developer maintaining an existing code base.
You already wrote notes about the code files. Now write notes about a package from the notes of its files and sub-packages.
Make sure to include:
- The purpose of the package`

const packageUserPrompt = `
Just return the notes.
DO NOT explain your reason.

Package Name: %s

Notes of Sub Packages:
%s

Notes of Direct Child Files:
%s
`

// Stats counts the work done by Files.
type Stats struct {
	Summarized int
	Skipped    int
}

type Summarizer struct {
	files    llm.Querier
	packages llm.Querier
	fs       *safeio.SafeFS
	workers  int
	maxSize  int64
	log      *zap.Logger
}

type Option func(*Summarizer)

// WithWorkers bounds the number of files summarized at once.
func WithWorkers(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *Summarizer) { s.maxSize = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Summarizer) {
		if log != nil {
			s.log = log
		}
	}
}

func New(client llmclient.LLMClient, fsys *safeio.SafeFS, opts ...Option) *Summarizer {
	s := &Summarizer{
		files:    llm.Bind(client, fileSystemPrompt, "").WithPhase("summarize_file"),
		packages: llm.Bind(client, packageSystemPrompt, "").WithPhase("summarize_package"),
		fs:       fsys,
		workers:  2,
		maxSize:  1 << 20,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Checksum is the content hash stored next to a file summary.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// Files summarizes every indexed file whose content changed since its
// summary was written, or that has no summary yet.
func (s *Summarizer) Files(ctx context.Context, idx *projectindex.Index) (Stats, error) {
	var summarized, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, f := range idx.Files() {
		g.Go(func() error {
			data, err := s.fs.ReadFileLimit(f.Path, s.maxSize)
			if err != nil {
				s.log.Warn("skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
				skipped.Add(1)
				return nil
			}
			sum := Checksum(data)
			if f.Summary != "" && f.Checksum == sum {
				skipped.Add(1)
				return nil
			}
			notes, err := s.files.Query(gctx, fmt.Sprintf(fileUserPrompt, f.Name, f.Namespace, data))
			if err != nil {
				return fmt.Errorf("summarize: file %s: %w", f.Path, err)
			}
			if err := idx.SetFileSummary(f.Name, f.Namespace, notes, sum); err != nil {
				return err
			}
			summarized.Add(1)
			s.log.Debug("file summarized", zap.String("path", f.Path))
			return nil
		})
	}
	err := g.Wait()
	return Stats{Summarized: int(summarized.Load()), Skipped: int(skipped.Load())}, err
}

// Packages writes namespace notes children first, so every package sees
// the fresh notes of its sub-packages.
func (s *Summarizer) Packages(ctx context.Context, idx *projectindex.Index) error {
	return idx.Traverse(true, func(ns *projectindex.Namespace) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, ok := idx.FindNamespaceInfo(ns.Path)
		if !ok {
			return nil
		}
		var subs, files strings.Builder
		for _, child := range info.Children {
			if ci, ok := idx.FindNamespaceInfo(child); ok {
				fmt.Fprintf(&subs, "Package: %s\nNotes: %s\n\n", child, ci.Summary)
			}
		}
		for _, f := range info.Files {
			fmt.Fprintf(&files, "File: %s\nNotes: %s\n\n", f.Name, f.Summary)
		}
		notes, err := s.packages.Query(ctx, fmt.Sprintf(packageUserPrompt, ns.Path, subs.String(), files.String()))
		if err != nil {
			return fmt.Errorf("summarize: package %s: %w", ns.Path, err)
		}
		idx.SetNamespaceSummary(ns.Path, notes)
		s.log.Debug("package summarized", zap.String("package", ns.Path))
		return nil
	})
}
