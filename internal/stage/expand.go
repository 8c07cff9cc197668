package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
)

// Expand turns plan-level suspect ids and evidence seeds into full records.
// Each item is an independent task: it reads a narrow context slice and
// writes a non-overlapping output path, so the orchestrator fans them out
// freely.
type Expand struct {
	Env *Env
}

var suspectSchema = json.RawMessage(`{
  "type": "object",
  "required": ["id", "name", "occupation", "motive", "alibi"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "occupation": {"type": "string"},
    "motive": {"type": "string"},
    "alibi": {"type": "string"},
    "is_culprit": {"type": "boolean"},
    "red_herring": {"type": "boolean"},
    "relations": {"type": "array", "items": {"type": "string"}}
  }
}`)

var evidenceSchema = json.RawMessage(`{
  "type": "object",
  "required": ["id", "kind", "title", "description"],
  "properties": {
    "id": {"type": "string"},
    "kind": {"type": "string"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "found_at": {"type": "string"},
    "collected_at": {"type": "string", "description": "RFC3339"},
    "custody_chain": {"type": "array", "items": {"type": "string"}},
    "implicates_id": {"type": "string"},
    "red_herring": {"type": "boolean"}
  }
}`)

// Suspect expands one suspect id from the plan.
func (e *Expand) Suspect(ctx context.Context, caseID, suspectID string) (artifact.Suspect, error) {
	env := e.Env
	snap, err := env.Store.BuildSnapshot(ctx, caseID, []string{casectx.PathPlanCore})
	if err != nil {
		return artifact.Suspect{}, stageErr("expand-suspect", err)
	}
	var plan artifact.CasePlan
	if err := snap.Decode(casectx.PathPlanCore, &plan); err != nil {
		return artifact.Suspect{}, stageErr("expand-suspect", fmt.Errorf("plan/core unavailable: %w", err))
	}

	spec := promptSpec{
		Purpose:    "Flesh out one suspect of an investigative case.",
		Background: "The case plan is provided; the suspect must fit it exactly.",
		Constraints: []string{
			fmt.Sprintf("id must be %q.", suspectID),
			"is_culprit must be true only if the id equals the plan's culprit_id.",
			"The alibi must name a concrete place and time window consistent with the plan timeline.",
		},
	}
	in := map[string]any{"plan": plan, "suspect_id": suspectID}

	var sus artifact.Suspect
	required := []string{"id", "name", "motive", "alibi"}
	if err := callStructured(ctx, env, caseID, "expand-suspect", spec.System(), userInput(in), suspectSchema, required, &sus); err != nil {
		return artifact.Suspect{}, err
	}
	if sus.ID != suspectID {
		return artifact.Suspect{}, stageErr("expand-suspect", fmt.Errorf("generated suspect id %q, want %q", sus.ID, suspectID))
	}
	if err := env.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathPlanSuspects, suspectID), sus); err != nil {
		return artifact.Suspect{}, stageErr("expand-suspect", err)
	}
	return sus, nil
}

// Evidence expands one evidence seed into a full item.
func (e *Expand) Evidence(ctx context.Context, caseID string, seed artifact.EvidenceSeed) (artifact.EvidenceItem, error) {
	env := e.Env
	snap, err := env.Store.BuildSnapshot(ctx, caseID, []string{casectx.PathPlanCore})
	if err != nil {
		return artifact.EvidenceItem{}, stageErr("expand-evidence", err)
	}
	var plan artifact.CasePlan
	if err := snap.Decode(casectx.PathPlanCore, &plan); err != nil {
		return artifact.EvidenceItem{}, stageErr("expand-evidence", fmt.Errorf("plan/core unavailable: %w", err))
	}

	spec := promptSpec{
		Purpose:    "Describe one piece of evidence for an investigative case.",
		Background: "The case plan is provided; the evidence must support or mislead exactly as the seed hint says.",
		Constraints: []string{
			fmt.Sprintf("id must be %q and kind %q.", seed.ID, seed.Kind),
			"collected_at must be RFC3339 and after the crime_time.",
			"Forensic evidence must list a custody_chain of at least two handlers.",
		},
	}
	in := map[string]any{"plan": plan, "seed": seed}

	var item artifact.EvidenceItem
	required := []string{"id", "kind", "title", "description"}
	if err := callStructured(ctx, env, caseID, "expand-evidence", spec.System(), userInput(in), evidenceSchema, required, &item); err != nil {
		return artifact.EvidenceItem{}, err
	}
	if item.ID != seed.ID {
		return artifact.EvidenceItem{}, stageErr("expand-evidence", fmt.Errorf("generated evidence id %q, want %q", item.ID, seed.ID))
	}
	if err := env.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathExpandEvidence, seed.ID), item); err != nil {
		return artifact.EvidenceItem{}, stageErr("expand-evidence", err)
	}
	return item, nil
}
