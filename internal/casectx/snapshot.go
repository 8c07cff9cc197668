package casectx

import (
	"context"
	"encoding/json"
	"time"

	"caseforge/internal/util/jsonutil"
)

// Snapshot is an immutable bag of resolved context paths built for one stage
// invocation. It records which requested paths loaded and which failed, and
// an estimated token size so callers can watch their prompt budget. It is
// owned by the stage call that requested it and discarded after use.
type Snapshot struct {
	CaseID          string
	BuiltAt         time.Time
	Items           map[string]json.RawMessage
	Failed          []string
	EstimatedTokens int
}

// Has reports whether the path resolved successfully.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.Items[path]
	return ok
}

// Decode unmarshals one snapshot entry into out. Missing paths return
// ErrNotFound.
func (s *Snapshot) Decode(path string, out any) error {
	raw, ok := s.Items[path]
	if !ok {
		return ErrNotFound
	}
	return jsonutil.UnmarshalRaw(raw, out)
}

// BuildSnapshot loads each path independently; a failed path lands in the
// Failed list instead of aborting the snapshot, so callers decide whether a
// missing optional item is fatal.
func (s *Store) BuildSnapshot(ctx context.Context, caseID string, paths []string) (*Snapshot, error) {
	snap := &Snapshot{
		CaseID:  caseID,
		BuiltAt: time.Now(),
		Items:   make(map[string]json.RawMessage, len(paths)),
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		b, err := s.backend.Get(ctx, caseID, p)
		if err != nil {
			snap.Failed = append(snap.Failed, p)
			continue
		}
		snap.Items[p] = json.RawMessage(b)
		// Rough 4 bytes/token estimate, same heuristic as the llm clients.
		snap.EstimatedTokens += len(b) / 4
	}
	return snap, nil
}
