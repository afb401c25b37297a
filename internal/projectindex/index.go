// Package projectindex maps project files to their metadata and derives a
// dot-delimited namespace tree from them. The tree is never edited
// directly: every mutation of the file list regenerates it.
package projectindex

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileEntry describes one indexed file. Identity is the (Name, Namespace) pair.
type FileEntry struct {
	Name      string
	Path      string // relative to the project root, forward slashes
	Namespace string
	Summary   string
	Checksum  string // xxh3 of the content the summary was computed from
}

// Namespace is a node of the derived namespace forest.
type Namespace struct {
	Path     string
	Summary  string
	Files    []string              // sorted child file names
	Children map[string]*Namespace // keyed by full dotted path
}

// ChildPaths returns the full paths of the immediate children, sorted.
func (n *Namespace) ChildPaths() []string {
	out := make([]string, 0, len(n.Children))
	for k := range n.Children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NamespaceInfo is the resolved view of a namespace.
type NamespaceInfo struct {
	Path     string
	Summary  string
	Children []string
	Files    []FileEntry
}

// Index owns the flat file list, the namespace summaries and the derived tree.
type Index struct {
	mu        sync.RWMutex
	files     []FileEntry
	summaries map[string]string
	tree      map[string]*Namespace
}

// SkipDirs are never descended into while building or searching.
var SkipDirs = map[string]struct{}{
	".git": {}, ".hg": {}, ".svn": {}, "node_modules": {}, "vendor": {},
	"target": {}, "build": {}, ".idea": {}, ".gradle": {}, ".cache": {},
}

// New returns an index over the given files.
func New(files []FileEntry) *Index {
	x := &Index{summaries: make(map[string]string)}
	x.files = append([]FileEntry(nil), files...)
	x.tree = generateTree(x.files, x.summaries)
	return x
}

// Build walks root/prefix for every prefix and indexes files whose name ends
// with one of suffixes. A missing prefix is skipped; if none exists the
// index is empty and a warning is logged.
func Build(root string, prefixes, suffixes []string, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	var files []FileEntry
	found := false
	for _, prefix := range prefixes {
		base := filepath.Join(root, filepath.FromSlash(prefix))
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			continue
		}
		found = true
		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if _, skip := SkipDirs[d.Name()]; skip && path != base {
					return filepath.SkipDir
				}
				return nil
			}
			if !hasSuffix(d.Name(), suffixes) {
				return nil
			}
			relDir, err := filepath.Rel(base, filepath.Dir(path))
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			files = append(files, FileEntry{
				Name:      d.Name(),
				Path:      filepath.ToSlash(rel),
				Namespace: namespaceOf(relDir),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if !found {
		log.Warn("no include prefix exists, index is empty",
			zap.String("root", root), zap.Strings("prefixes", prefixes))
	}
	return New(files), nil
}

func hasSuffix(name string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func namespaceOf(relDir string) string {
	relDir = filepath.ToSlash(relDir)
	if relDir == "." || relDir == "" {
		return ""
	}
	return strings.ReplaceAll(strings.Trim(relDir, "/"), "/", ".")
}

// generateTree derives the namespace forest. Output does not depend on the
// order of files.
func generateTree(files []FileEntry, summaries map[string]string) map[string]*Namespace {
	roots := make(map[string]*Namespace)
	for _, f := range files {
		parts := strings.Split(f.Namespace, ".")
		level := roots
		var node *Namespace
		for i := range parts {
			p := strings.Join(parts[:i+1], ".")
			n, ok := level[p]
			if !ok {
				n = &Namespace{Path: p, Summary: summaries[p], Children: make(map[string]*Namespace)}
				level[p] = n
			}
			node = n
			level = n.Children
		}
		node.Files = append(node.Files, f.Name)
	}
	var sortFiles func(m map[string]*Namespace)
	sortFiles = func(m map[string]*Namespace) {
		for _, n := range m {
			sort.Strings(n.Files)
			sortFiles(n.Children)
		}
	}
	sortFiles(roots)
	return roots
}

// Files returns a copy of the flat file list in index order.
func (x *Index) Files() []FileEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]FileEntry(nil), x.files...)
}

// Len reports the number of indexed files.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.files)
}

// FindFile looks a file up by name and, when namespace is not empty, by
// namespace too. Without a namespace the first match in index order wins,
// which is ambiguous when two namespaces hold a file of the same name.
func (x *Index) FindFile(name, namespace string) (FileEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.findFileLocked(name, namespace)
}

func (x *Index) findFileLocked(name, namespace string) (FileEntry, bool) {
	for _, f := range x.files {
		if f.Name == name && (namespace == "" || f.Namespace == namespace) {
			return f, true
		}
	}
	return FileEntry{}, false
}

func (x *Index) nodeLocked(path string) *Namespace {
	parts := strings.Split(path, ".")
	level := x.tree
	var node *Namespace
	for i := range parts {
		n, ok := level[strings.Join(parts[:i+1], ".")]
		if !ok {
			return nil
		}
		node = n
		level = n.Children
	}
	return node
}

// FindNamespaceInfo returns the summary, children and files of a namespace.
func (x *Index) FindNamespaceInfo(path string) (NamespaceInfo, bool) {
	path = strings.TrimSpace(path)
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := x.nodeLocked(path)
	if n == nil {
		return NamespaceInfo{}, false
	}
	info := NamespaceInfo{Path: n.Path, Summary: n.Summary, Children: n.ChildPaths()}
	for _, name := range n.Files {
		if f, ok := x.findFileLocked(name, n.Path); ok {
			info.Files = append(info.Files, f)
		}
	}
	return info, true
}

// ErrUnknownFile is returned when a summary targets a file that is not indexed.
var ErrUnknownFile = errors.New("projectindex: unknown file")

// SetFileSummary records the summary and content checksum of one file.
func (x *Index) SetFileSummary(name, namespace, summary, checksum string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.files {
		if x.files[i].Name == name && x.files[i].Namespace == namespace {
			x.files[i].Summary = strings.TrimSpace(summary)
			x.files[i].Checksum = checksum
			return nil
		}
	}
	return ErrUnknownFile
}

// SetNamespaceSummary records the summary of a namespace. Summaries of
// namespaces absent from the tree are kept so a later rebuild picks them up.
func (x *Index) SetNamespaceSummary(path, summary string) {
	summary = strings.TrimSpace(summary)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.summaries[path] = summary
	if n := x.nodeLocked(path); n != nil {
		n.Summary = summary
	}
}

// NamespaceSummaries returns a copy of all recorded namespace summaries.
func (x *Index) NamespaceSummaries() map[string]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]string, len(x.summaries))
	for k, v := range x.summaries {
		out[k] = v
	}
	return out
}

// MergeSummaries copies summaries from prev for files whose path is
// unchanged, and all namespace summaries. Used after a fresh Build so a
// rescan keeps the work of an earlier summarization pass.
func (x *Index) MergeSummaries(prev *Index) {
	if prev == nil {
		return
	}
	byPath := make(map[string]FileEntry)
	for _, f := range prev.Files() {
		byPath[f.Path] = f
	}
	notes := prev.NamespaceSummaries()
	x.mu.Lock()
	for i := range x.files {
		if old, ok := byPath[x.files[i].Path]; ok && old.Namespace == x.files[i].Namespace {
			x.files[i].Summary = old.Summary
			x.files[i].Checksum = old.Checksum
		}
	}
	for k, v := range notes {
		x.summaries[k] = v
	}
	x.tree = generateTree(x.files, x.summaries)
	x.mu.Unlock()
}

// Traverse visits every namespace in sorted order. With bottomUp set the
// children of a namespace are visited before the namespace itself.
func (x *Index) Traverse(bottomUp bool, visit func(ns *Namespace) error) error {
	x.mu.RLock()
	tree := x.tree
	x.mu.RUnlock()
	return traverse(tree, bottomUp, visit)
}

func traverse(level map[string]*Namespace, bottomUp bool, visit func(ns *Namespace) error) error {
	keys := make([]string, 0, len(level))
	for k := range level {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := level[k]
		if bottomUp {
			if err := traverse(n.Children, bottomUp, visit); err != nil {
				return err
			}
		}
		if err := visit(n); err != nil {
			return err
		}
		if !bottomUp {
			if err := traverse(n.Children, bottomUp, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
