package projectindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned by a Store that has nothing persisted yet.
var ErrNoSnapshot = errors.New("projectindex: no snapshot")

// Store persists and restores index snapshots.
type Store interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, x *Index) error
}

// FileStore keeps the two snapshot files in a directory, normally the
// project root.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (s *FileStore) filesPath() string { return filepath.Join(s.Dir, FilesSnapshotName) }
func (s *FileStore) notesPath() string { return filepath.Join(s.Dir, NamespaceSnapshotName) }

func (s *FileStore) Load(_ context.Context) (*Index, error) {
	files, err := os.Open(s.filesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	defer files.Close()

	notes, err := os.Open(s.notesPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return LoadSnapshot(files, nil)
	}
	defer notes.Close()
	return LoadSnapshot(files, notes)
}

func (s *FileStore) Save(_ context.Context, x *Index) error {
	var files, notes bytes.Buffer
	if err := x.WriteFiles(&files); err != nil {
		return err
	}
	if err := x.WriteNamespaces(&notes); err != nil {
		return err
	}
	if err := writeFileAtomic(s.filesPath(), files.Bytes()); err != nil {
		return fmt.Errorf("projectindex: save files: %w", err)
	}
	if err := writeFileAtomic(s.notesPath(), notes.Bytes()); err != nil {
		return fmt.Errorf("projectindex: save namespaces: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
