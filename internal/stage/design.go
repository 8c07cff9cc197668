package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
)

// Design produces the document and media specs the generate stage fans out
// over, including the gating rules the normalizer later derives the unlock
// graph from.
type Design struct {
	Env *Env
}

var designSchema = json.RawMessage(`{
  "type": "object",
  "required": ["documents", "media"],
  "properties": {
    "documents": {"type": "array", "items": {"type": "object", "required": ["doc_id", "type", "title", "required_sections", "target_words"]}},
    "media": {"type": "array", "items": {"type": "object", "required": ["evidence_id", "kind", "caption"]}}
  }
}`)

func (d *Design) Run(ctx context.Context, caseID string) (artifact.CaseDesign, error) {
	env := d.Env

	paths := []string{casectx.PathPlanCore}
	suspects, err := env.Store.ListUnder(ctx, caseID, casectx.PathPlanSuspects)
	if err != nil {
		return artifact.CaseDesign{}, stageErr("design", err)
	}
	evidence, err := env.Store.ListUnder(ctx, caseID, casectx.PathExpandEvidence)
	if err != nil {
		return artifact.CaseDesign{}, stageErr("design", err)
	}
	paths = append(paths, suspects...)
	paths = append(paths, evidence...)

	snap, err := env.Store.BuildSnapshot(ctx, caseID, paths)
	if err != nil {
		return artifact.CaseDesign{}, stageErr("design", err)
	}
	if !snap.Has(casectx.PathPlanCore) {
		return artifact.CaseDesign{}, stageErr("design", fmt.Errorf("plan/core unavailable"))
	}

	nDocs := env.Profile.Documents.Pick(env.Rand)
	spec := promptSpec{
		Purpose:    "Design the document and media set for an investigative case.",
		Background: fmt.Sprintf("Difficulty %s. Full plan, suspects and evidence are provided.", env.Profile.Name),
		Constraints: []string{
			fmt.Sprintf("Exactly %d documents; ids doc_001..doc_%03d.", nDocs, nDocs),
			"One media descriptor per physical or forensic evidence item, reusing the evidence id.",
			"Gate advanced documents behind evidence ids with a gating rule {action, required_ids}.",
			"Gating must be acyclic: a document may only require evidence, never documents that require it back.",
			"Every suspect must be covered by at least one interview document.",
		},
		Rules: []string{
			"required_sections must fit the document type, e.g. an autopsy has findings and toxicology.",
		},
	}
	in := map[string]any{"context": snap.Items}

	var design artifact.CaseDesign
	if err := callStructured(ctx, env, caseID, "design", spec.System(), userInput(in), designSchema, []string{"documents", "media"}, &design); err != nil {
		return artifact.CaseDesign{}, err
	}
	if !env.Profile.Documents.Contains(len(design.Documents)) {
		return artifact.CaseDesign{}, stageErr("design", fmt.Errorf("document count %d outside profile range [%d,%d]",
			len(design.Documents), env.Profile.Documents.Min, env.Profile.Documents.Max))
	}
	if err := env.Store.Save(ctx, caseID, casectx.PathDesign, design); err != nil {
		return artifact.CaseDesign{}, stageErr("design", err)
	}
	return design, nil
}
