package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Local resolves logical paths directly against a host filesystem subtree.
type Local struct {
	root string
}

// NewLocal creates a local backend rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

func (l *Local) resolve(logicalPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(normalize(logicalPath)))
}

// Exists reports whether the path denotes an existing file or directory.
func (l *Local) Exists(_ context.Context, logicalPath string) (bool, error) {
	_, err := os.Stat(l.resolve(logicalPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to stat %s", logicalPath)
	}
	return true, nil
}

// ReadFile returns the file content, or (nil, nil) if it does not exist.
func (l *Local) ReadFile(_ context.Context, logicalPath string) ([]byte, error) {
	content, err := os.ReadFile(l.resolve(logicalPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", logicalPath)
	}
	return content, nil
}

// WriteFile writes content, creating parent directories as needed.
func (l *Local) WriteFile(_ context.Context, logicalPath string, content []byte) error {
	target := l.resolve(logicalPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create parent directories for %s", logicalPath)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", logicalPath)
	}
	return nil
}

// ReadDir lists the directory, or returns an empty listing if it is absent.
func (l *Local) ReadDir(_ context.Context, logicalPath string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(l.resolve(logicalPath))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", logicalPath)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entries = append(entries, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return entries, nil
}

// Mkdir creates the directory and any parents. Idempotent.
func (l *Local) Mkdir(_ context.Context, logicalPath string) error {
	if err := os.MkdirAll(l.resolve(logicalPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", logicalPath)
	}
	return nil
}

// Remove deletes the path recursively. Removing an absent path is a no-op.
func (l *Local) Remove(_ context.Context, logicalPath string) error {
	if err := os.RemoveAll(l.resolve(logicalPath)); err != nil {
		return errors.Wrapf(err, "failed to remove %s", logicalPath)
	}
	return nil
}
