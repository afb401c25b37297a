// Package safeio gives read-only access to the files of one project root.
// Every path is resolved relative to the root and rejected when it escapes it.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrTooLarge = errors.New("safeio: file exceeds size limit")
	ErrIsDir    = errors.New("safeio: path is a directory")
)

// SafeFS is bound to an absolute, symlink-free root directory.
type SafeFS struct {
	absRoot string
}

// New locks all operations to root.
func New(root string) (*SafeFS, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: root is not a directory")
	}
	return &SafeFS{absRoot: abs}, nil
}

func (s *SafeFS) Root() string { return s.absRoot }

// Stat returns metadata for a path under the root.
func (s *SafeFS) Stat(rel string) (fs.FileInfo, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// ReadFile reads a whole file under the root.
func (s *SafeFS) ReadFile(rel string) ([]byte, error) {
	return s.ReadFileLimit(rel, 0)
}

// ReadFileLimit reads a file, failing with ErrTooLarge when it is bigger
// than max bytes. max <= 0 disables the check.
func (s *SafeFS) ReadFileLimit(rel string, max int64) ([]byte, error) {
	p, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDir
	}
	if max > 0 && info.Size() > max {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, rel, info.Size())
	}
	return io.ReadAll(f)
}

// WalkFunc receives root-relative paths with forward slashes.
type WalkFunc func(rel string, d fs.DirEntry) error

// Walk visits every regular file under the root, skipping directories whose
// base name is in skipDirs. Returning fs.SkipAll from fn stops the walk.
func (s *SafeFS) Walk(skipDirs map[string]struct{}, fn WalkFunc) error {
	err := filepath.WalkDir(s.absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != s.absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.absRoot, path)
		if err != nil {
			return nil
		}
		return fn(filepath.ToSlash(rel), d)
	})
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (s *SafeFS) resolve(userPath string) (string, error) {
	if s == nil {
		return "", errors.New("safeio: filesystem not configured")
	}
	if userPath == "" {
		return "", errors.New("safeio: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(userPath))
	if clean == "." {
		return s.absRoot, nil
	}

	isAbs := filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "")
	if !isAbs && (clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))) {
		return "", errors.New("safeio: path traversal not allowed")
	}
	joined := clean
	if !isAbs {
		joined = filepath.Join(s.absRoot, clean)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !within(resolved, s.absRoot) {
		return "", fmt.Errorf("safeio: resolved outside root (root=%s, path=%s)", s.absRoot, resolved)
	}
	return resolved, nil
}

func within(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
