package casectx

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskBackend stores one JSON file per context path under
// <root>/<caseID>/<path>.json. Writes go through a temp file and rename so a
// crashed process never leaves a half-written artifact behind.
type DiskBackend struct {
	root string
}

func NewDiskBackend(root string) (*DiskBackend, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("casectx: empty disk root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskBackend{root: root}, nil
}

func (s *DiskBackend) filePath(caseID, path string) (string, error) {
	caseID = strings.TrimSpace(caseID)
	path = strings.Trim(strings.TrimSpace(path), "/")
	if caseID == "" || path == "" {
		return "", fmt.Errorf("case_id and path are required")
	}
	rel := filepath.Join(caseID, filepath.FromSlash(path)+".json")
	full := filepath.Join(s.root, rel)
	// Reject traversal out of the root.
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("casectx: path escapes root: %s", path)
	}
	return full, nil
}

func (s *DiskBackend) Put(_ context.Context, caseID, path string, content []byte) error {
	full, err := s.filePath(caseID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

func (s *DiskBackend) Get(_ context.Context, caseID, path string) ([]byte, error) {
	full, err := s.filePath(caseID, path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DiskBackend) List(_ context.Context, caseID string) ([]string, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("case_id is required")
	}
	base := filepath.Join(s.root, caseID)
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		out = append(out, strings.TrimSuffix(filepath.ToSlash(rel), ".json"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
