// Package resolver answers the information requests a model makes, reading
// from the project index and the project files.
package resolver

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"gistloop/internal/directive"
	"gistloop/internal/projectindex"
	"gistloop/internal/safeio"
	"gistloop/internal/searchcache"
)

// Outcome summarizes one resolution pass for the conversation loop.
type Outcome int

const (
	// NotFound means nothing requested could be resolved.
	NotFound Outcome = iota
	// Found means at least one request produced information.
	Found
	// LoopDetected means a keyword already confirmed absent was requested
	// again. It takes precedence over the other outcomes.
	LoopDetected
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case LoopDetected:
		return "loop_detected"
	default:
		return "not_found"
	}
}

// Result is the information produced for one round of requests.
type Result struct {
	NewInformation string
	Found          []string
	NotFound       []string
	Outcome        Outcome
}

type Config struct {
	Extensions  []string
	MaxFiles    int
	MaxFileSize int64
	Workers     int
}

func (c Config) withDefaults() Config {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".java", ".yml", ".properties"}
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = 10000
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 1 << 20
	}
	return c
}

// Resolver is bound to one conversation through its search cache.
type Resolver struct {
	idx   *projectindex.Index
	fs    *safeio.SafeFS
	cache *searchcache.Cache
	cfg   Config
	exts  map[string]struct{}
	log   *zap.Logger
}

func New(idx *projectindex.Index, fsys *safeio.SafeFS, cache *searchcache.Cache, cfg Config, log *zap.Logger) (*Resolver, error) {
	if idx == nil || fsys == nil || cache == nil {
		return nil, fmt.Errorf("resolver: index, filesystem and cache are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Resolver{idx: idx, fs: fsys, cache: cache, cfg: cfg, exts: exts, log: log}, nil
}

// Cache exposes the conversation's search cache.
func (r *Resolver) Cache() *searchcache.Cache { return r.cache }

// Resolve answers every request in reqs. Blocks are concatenated in the
// order keywords, files, packages. Misses are reported inline and never
// returned as errors.
func (r *Resolver) Resolve(ctx context.Context, reqs directive.Requests) Result {
	var (
		b    strings.Builder
		res  Result
		loop bool
	)
	for _, kw := range reqs.Keywords {
		paths, cached := r.cache.Get(kw)
		if cached && len(paths) == 0 {
			loop = true
			r.log.Info("repeated search for absent keyword", zap.String("keyword", kw))
		}
		if !cached {
			var err error
			paths, err = r.Search(ctx, kw)
			if err != nil {
				r.log.Warn("keyword search failed", zap.String("keyword", kw), zap.Error(err))
				b.WriteString(noMatchBlock(kw))
				res.NotFound = append(res.NotFound, kw)
				continue
			}
			r.cache.Put(kw, paths)
		}
		if len(paths) == 0 {
			b.WriteString(noMatchBlock(kw))
			res.NotFound = append(res.NotFound, kw)
			continue
		}
		b.WriteString(searchBlock(kw, paths))
		res.Found = append(res.Found, kw)
	}

	for _, name := range reqs.Files {
		entry, content, ok := r.readFile(name)
		if !ok {
			b.WriteString(fileMissingBlock(name))
			res.NotFound = append(res.NotFound, name)
			continue
		}
		b.WriteString(fileBlock(entry.Name, entry.Summary, content))
		res.Found = append(res.Found, name)
	}

	for _, pkg := range reqs.Packages {
		info, ok := r.idx.FindNamespaceInfo(pkg)
		if !ok {
			b.WriteString(packageMissingBlock(pkg))
			res.NotFound = append(res.NotFound, pkg)
			continue
		}
		b.WriteString(packageBlock(info))
		res.Found = append(res.Found, pkg)
	}

	res.NewInformation = b.String()
	switch {
	case loop:
		res.Outcome = LoopDetected
	case len(res.Found) > 0:
		res.Outcome = Found
	default:
		res.Outcome = NotFound
	}
	return res
}

// readFile looks name up in the index and reads its current content.
// Requests that carry a path fall back to the base name.
func (r *Resolver) readFile(name string) (projectindex.FileEntry, string, bool) {
	entry, ok := r.idx.FindFile(name, "")
	if !ok && strings.Contains(name, "/") {
		entry, ok = r.idx.FindFile(path.Base(name), "")
	}
	if !ok {
		return projectindex.FileEntry{}, "", false
	}
	content, err := r.content(entry.Path)
	if err != nil {
		r.log.Warn("indexed file unreadable", zap.String("path", entry.Path), zap.Error(err))
		return projectindex.FileEntry{}, "", false
	}
	return entry, content, true
}

// content reads rel from disk on every request so that edits made during
// a conversation are always seen.
func (r *Resolver) content(rel string) (string, error) {
	data, err := r.fs.ReadFile(rel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
