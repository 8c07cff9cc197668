package casectx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps everything in process. Used by tests and single-shot
// CLI runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func key(caseID, path string) string {
	return caseID + "/" + strings.TrimLeft(path, "/")
}

func (s *MemoryBackend) Put(_ context.Context, caseID, path string, content []byte) error {
	caseID = strings.TrimSpace(caseID)
	path = strings.TrimSpace(path)
	if caseID == "" {
		return fmt.Errorf("case_id is required")
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(caseID, path)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryBackend) Get(_ context.Context, caseID, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key(strings.TrimSpace(caseID), strings.TrimSpace(path))]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryBackend) List(_ context.Context, caseID string) ([]string, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("case_id is required")
	}
	prefix := caseID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}
