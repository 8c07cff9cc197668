package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
)

// Renderer is the external back end that turns normalized JSON into PDFs and
// images. Only the reported path/size/hash are consumed, to populate the
// manifest; rendering internals stay out of scope.
type Renderer interface {
	RenderDocument(ctx context.Context, caseID string, doc artifact.CaseDocument) (artifact.RenderResult, error)
	RenderMedia(ctx context.Context, caseID string, media artifact.CaseMedia) (artifact.RenderResult, error)
}

// StubRenderer hashes the JSON payload in place of real rendering, so
// manifests carry usable hashes in offline runs and tests.
type StubRenderer struct{}

func (StubRenderer) RenderDocument(_ context.Context, caseID string, doc artifact.CaseDocument) (artifact.RenderResult, error) {
	return stubResult(caseID, "documents", doc.DocID, doc)
}

func (StubRenderer) RenderMedia(_ context.Context, caseID string, media artifact.CaseMedia) (artifact.RenderResult, error) {
	return stubResult(caseID, "media", media.EvidenceID, media)
}

func stubResult(caseID, kind, id string, v any) (artifact.RenderResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return artifact.RenderResult{}, err
	}
	sum := sha256.Sum256(b)
	return artifact.RenderResult{
		ID:        id,
		Path:      fmt.Sprintf("%s/%s/%s.json", caseID, kind, id),
		SizeBytes: int64(len(b)),
		Hash:      hex.EncodeToString(sum[:]),
	}, nil
}
