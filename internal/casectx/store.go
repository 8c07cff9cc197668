// Package casectx is the path-addressable, hierarchical store for
// intermediate pipeline artifacts. Paths are namespaced by logical phase
// (plan/core, expand/evidence/{id}, ...) so later stages can request only the
// slice of prior output they need.
package casectx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"caseforge/internal/util/jsonutil"
)

var ErrNotFound = errors.New("casectx: path not found")

// Backend persists raw bytes keyed by case id and path. Put is an idempotent
// overwrite-by-path, safe to retry.
type Backend interface {
	Put(ctx context.Context, caseID, path string, content []byte) error
	Get(ctx context.Context, caseID, path string) ([]byte, error)
	List(ctx context.Context, caseID string) ([]string, error)
}

// Well-known path roots.
const (
	PathPlanCore       = "plan/core"
	PathPlanSuspects   = "plan/suspects"
	PathExpandEvidence = "expand/evidence"
	PathDesign         = "design/specs"
	PathGenerateDocs   = "generate/documents"
	PathGenerateMedia  = "generate/media"
	PathRenderResults  = "render/results"
	PathBundle         = "normalize/bundle"
	PathReport         = "normalize/report"
	PathStatus         = "pipeline/status"
	PathManifest       = "package/manifest"
	PathVisualRegistry = "visual-registry"
)

// ItemPath joins a namespace root with an item id, e.g. plan/suspects/sus_01.
func ItemPath(root, id string) string { return root + "/" + id }

// ResolveRef maps an "@type/id" reference token to a store path. It is a pure
// lookup-key translation; unknown types pass through unchanged minus the "@".
func ResolveRef(ref string) string {
	s := strings.TrimPrefix(strings.TrimSpace(ref), "@")
	typ, id, ok := strings.Cut(s, "/")
	if !ok {
		return s
	}
	switch typ {
	case "suspect":
		return ItemPath(PathPlanSuspects, id)
	case "evidence":
		return ItemPath(PathExpandEvidence, id)
	case "document":
		return ItemPath(PathGenerateDocs, id)
	case "media":
		return ItemPath(PathGenerateMedia, id)
	default:
		return s
	}
}

// Store wraps a Backend with JSON encoding and snapshot assembly.
type Store struct {
	backend Backend
}

func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// Save marshals v and writes it under the stable path. Saving the same value
// twice is a no-op overwrite.
func (s *Store) Save(ctx context.Context, caseID, path string, v any) error {
	b, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		return fmt.Errorf("casectx: marshal %s: %w", path, err)
	}
	if err := s.backend.Put(ctx, caseID, path, b); err != nil {
		return fmt.Errorf("casectx: save %s: %w", path, err)
	}
	return nil
}

// Load reads the path and unmarshals into out. Missing paths return
// ErrNotFound.
func (s *Store) Load(ctx context.Context, caseID, path string, out any) error {
	b, err := s.backend.Get(ctx, caseID, path)
	if err != nil {
		return err
	}
	if err := jsonutil.Unmarshal(b, out); err != nil {
		return fmt.Errorf("casectx: decode %s: %w", path, err)
	}
	return nil
}

// List returns every stored path for the case.
func (s *Store) List(ctx context.Context, caseID string) ([]string, error) {
	return s.backend.List(ctx, caseID)
}

// ListUnder returns stored paths with the given prefix.
func (s *Store) ListUnder(ctx context.Context, caseID, root string) ([]string, error) {
	all, err := s.backend.List(ctx, caseID)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []string
	for _, p := range all {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}
