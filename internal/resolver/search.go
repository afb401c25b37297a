package resolver

import (
	"bytes"
	"context"
	"io/fs"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gistloop/internal/projectindex"
)

// Search returns the sorted relative paths of allowed files whose content
// contains keyword, ignoring case. Files over MaxFileSize are skipped and
// at most MaxFiles candidates are scanned.
func (r *Resolver) Search(ctx context.Context, keyword string) ([]string, error) {
	needle := bytes.ToLower([]byte(strings.TrimSpace(keyword)))
	if len(needle) == 0 {
		return []string{}, nil
	}
	candidates, err := r.candidates(ctx)
	if err != nil {
		return nil, err
	}

	workers := runtime.GOMAXPROCS(0)
	if r.cfg.Workers > 0 && r.cfg.Workers < workers {
		workers = r.cfg.Workers
	}

	var (
		mu      sync.Mutex
		matches = []string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := r.fs.ReadFileLimit(rel, r.cfg.MaxFileSize)
			if err != nil {
				return nil
			}
			if bytes.Contains(bytes.ToLower(data), needle) {
				mu.Lock()
				matches = append(matches, rel)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(matches)
	r.log.Debug("keyword search",
		zap.String("keyword", keyword),
		zap.Int("scanned", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// candidates lists the files eligible for a content search.
func (r *Resolver) candidates(ctx context.Context) ([]string, error) {
	var out []string
	err := r.fs.Walk(projectindex.SkipDirs, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := r.exts[strings.ToLower(path.Ext(rel))]; !ok {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > r.cfg.MaxFileSize {
			return nil
		}
		out = append(out, rel)
		if len(out) >= r.cfg.MaxFiles {
			return fs.SkipAll
		}
		return nil
	})
	return out, err
}
