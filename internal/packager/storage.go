package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage is where packaged case files land for external consumers.
type Storage interface {
	Put(ctx context.Context, key string, content []byte) error
}

// LocalStorage writes packaged files under a directory tree.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("packager: empty storage root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) Put(_ context.Context, key string, content []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}
