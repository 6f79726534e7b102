package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Compile-time interface check.
var _ Backend = (*FileBackend)(nil)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileBackend keeps one {service}.token file per service in a directory.
type FileBackend struct {
	dir string
}

// DefaultDir is ~/.tentacles/tokens.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("tokenstore: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tentacles", "tokens"), nil
}

// NewFileBackend creates dir (0700) if needed. An empty dir means DefaultDir.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: create %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(service string) string {
	return filepath.Join(f.dir, unsafeName.ReplaceAllString(service, "_")+".token")
}

func (f *FileBackend) Get(_ context.Context, service string) ([]byte, error) {
	data, err := os.ReadFile(f.path(service))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read %s: %w", service, err)
	}
	return data, nil
}

// Put writes through a temp file and rename so readers never see a partial token.
func (f *FileBackend) Put(_ context.Context, service string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", service, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write %s: %w", service, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write %s: %w", service, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", service, err)
	}
	if err := os.Rename(tmp.Name(), f.path(service)); err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", service, err)
	}
	return nil
}

func (f *FileBackend) Delete(_ context.Context, service string) error {
	err := os.Remove(f.path(service))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: delete %s: %w", service, err)
	}
	return nil
}
