package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
)

// Generate produces the actual document and media content, one independent
// task per spec. Each task reads only the plan plus the entities its spec
// names, bounding prompt size regardless of total case size.
type Generate struct {
	Env *Env
}

var documentSchema = json.RawMessage(`{
  "type": "object",
  "required": ["doc_id", "type", "title", "sections"],
  "properties": {
    "doc_id": {"type": "string"},
    "type": {"type": "string"},
    "title": {"type": "string"},
    "created_at": {"type": "string", "description": "RFC3339"},
    "author": {"type": "string"},
    "sections": {"type": "array", "items": {"type": "object", "required": ["name", "body"]}},
    "references": {"type": "array", "items": {"type": "string"}}
  }
}`)

var mediaSchema = json.RawMessage(`{
  "type": "object",
  "required": ["evidence_id", "kind", "caption", "description"],
  "properties": {
    "evidence_id": {"type": "string"},
    "kind": {"type": "string"},
    "caption": {"type": "string"},
    "description": {"type": "string"},
    "captured_at": {"type": "string", "description": "RFC3339"},
    "references": {"type": "array", "items": {"type": "string"}}
  }
}`)

// snapshotFor resolves the narrow slice a generation task needs: the plan
// plus the subjects the document spec lists.
func (g *Generate) snapshotFor(ctx context.Context, caseID string, subjectIDs []string) (map[string]json.RawMessage, error) {
	paths := []string{casectx.PathPlanCore}
	for _, id := range subjectIDs {
		paths = append(paths,
			casectx.ItemPath(casectx.PathPlanSuspects, id),
			casectx.ItemPath(casectx.PathExpandEvidence, id),
		)
	}
	snap, err := g.Env.Store.BuildSnapshot(ctx, caseID, paths)
	if err != nil {
		return nil, err
	}
	if !snap.Has(casectx.PathPlanCore) {
		return nil, fmt.Errorf("plan/core unavailable")
	}
	return snap.Items, nil
}

// Document runs one document generation task.
func (g *Generate) Document(ctx context.Context, caseID string, spec artifact.DocumentSpec) (artifact.CaseDocument, error) {
	env := g.Env
	items, err := g.snapshotFor(ctx, caseID, spec.SubjectIDs)
	if err != nil {
		return artifact.CaseDocument{}, stageErr("generate-document", err)
	}

	ps := promptSpec{
		Purpose:    "Write one in-world investigative document.",
		Background: "The case plan and the entities this document covers are provided.",
		Constraints: []string{
			fmt.Sprintf("doc_id must be %q, type %q, title %q.", spec.DocID, spec.Type, spec.Title),
			fmt.Sprintf("Include exactly these sections in order: %v.", spec.RequiredSections),
			fmt.Sprintf("Aim for about %d words of body text.", spec.TargetWords),
			"created_at must be RFC3339 and at or after the crime time.",
			"references must list only ids that appear in the provided context.",
		},
		Rules: []string{
			"Stay strictly consistent with the plan timeline; never invent new suspects or evidence.",
		},
	}
	in := map[string]any{"spec": spec, "context": items}

	var doc artifact.CaseDocument
	required := []string{"doc_id", "type", "title", "sections"}
	if err := callStructured(ctx, env, caseID, "generate-document", ps.System(), userInput(in), documentSchema, required, &doc); err != nil {
		return artifact.CaseDocument{}, err
	}
	if doc.DocID != spec.DocID {
		return artifact.CaseDocument{}, stageErr("generate-document", fmt.Errorf("generated doc id %q, want %q", doc.DocID, spec.DocID))
	}
	// The gating rule is authored at design time; carry it onto the artifact.
	doc.Gating = spec.Gating
	if err := env.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathGenerateDocs, doc.DocID), doc); err != nil {
		return artifact.CaseDocument{}, stageErr("generate-document", err)
	}
	return doc, nil
}

// Media runs one media generation task.
func (g *Generate) Media(ctx context.Context, caseID string, spec artifact.MediaSpec) (artifact.CaseMedia, error) {
	env := g.Env
	items, err := g.snapshotFor(ctx, caseID, []string{spec.EvidenceID})
	if err != nil {
		return artifact.CaseMedia{}, stageErr("generate-media", err)
	}

	ps := promptSpec{
		Purpose:    "Write the descriptor for one piece of case media.",
		Background: "The case plan and the evidence item are provided.",
		Constraints: []string{
			fmt.Sprintf("evidence_id must be %q and kind %q.", spec.EvidenceID, spec.Kind),
			"description must be concrete enough for a renderer to draw the scene.",
			"captured_at must be RFC3339.",
		},
	}
	in := map[string]any{"spec": spec, "context": items}

	var media artifact.CaseMedia
	required := []string{"evidence_id", "kind", "caption", "description"}
	if err := callStructured(ctx, env, caseID, "generate-media", ps.System(), userInput(in), mediaSchema, required, &media); err != nil {
		return artifact.CaseMedia{}, err
	}
	if media.EvidenceID != spec.EvidenceID {
		return artifact.CaseMedia{}, stageErr("generate-media", fmt.Errorf("generated media id %q, want %q", media.EvidenceID, spec.EvidenceID))
	}
	media.Gating = spec.Gating
	if err := env.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathGenerateMedia, media.EvidenceID), media); err != nil {
		return artifact.CaseMedia{}, stageErr("generate-media", err)
	}
	return media, nil
}
