package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
)

// Plan produces the narrative skeleton for a case: title, crime, suspect and
// evidence id lists sized by the difficulty profile.
type Plan struct {
	Env *Env
}

var planSchema = json.RawMessage(`{
  "type": "object",
  "required": ["title", "setting", "crime_summary", "victim_name", "crime_time", "culprit_id", "suspect_ids", "evidence_seeds", "timeline_beats"],
  "properties": {
    "title": {"type": "string"},
    "setting": {"type": "string"},
    "crime_summary": {"type": "string"},
    "victim_name": {"type": "string"},
    "crime_time": {"type": "string", "description": "RFC3339"},
    "culprit_id": {"type": "string"},
    "suspect_ids": {"type": "array", "items": {"type": "string"}},
    "evidence_seeds": {"type": "array", "items": {"type": "object", "required": ["id", "kind", "hint"]}},
    "timeline_beats": {"type": "array", "items": {"type": "object", "required": ["at", "description"]}},
    "red_herrings": {"type": "array", "items": {"type": "string"}}
  }
}`)

func (p *Plan) Run(ctx context.Context, req artifact.GenerationRequest) (artifact.CasePlan, error) {
	env := p.Env
	nSuspects := env.Profile.Suspects.Pick(env.Rand)
	nEvidence := env.Profile.Evidence.Pick(env.Rand)

	spec := promptSpec{
		Purpose:    "Design the skeleton of a self-consistent investigative case.",
		Background: fmt.Sprintf("Difficulty %s. Timezone %s.", env.Profile.Name, env.Timezone),
		Constraints: []string{
			fmt.Sprintf("Exactly %d suspects; ids sus_001..sus_%03d.", nSuspects, nSuspects),
			fmt.Sprintf("Exactly %d evidence seeds; ids ev_001..ev_%03d.", nEvidence, nEvidence),
			fmt.Sprintf("Include %d red herring threads.", env.Profile.RedHerrings),
			"culprit_id must be one of suspect_ids.",
			"All timestamps RFC3339 in the case timezone.",
			"timeline_beats must be in chronological order.",
		},
		Rules: []string{
			"Keep every name, time and place internally consistent; later stages elaborate but never contradict this plan.",
		},
	}

	in := map[string]any{
		"case_id":     req.CaseID,
		"timezone":    env.Timezone,
		"constraints": req.Constraints,
	}

	var plan artifact.CasePlan
	required := []string{"title", "crime_summary", "suspect_ids", "evidence_seeds", "culprit_id"}
	if err := callStructured(ctx, env, req.CaseID, "plan", spec.System(), userInput(in), planSchema, required, &plan); err != nil {
		return artifact.CasePlan{}, err
	}
	if !env.Profile.Suspects.Contains(len(plan.SuspectIDs)) {
		return artifact.CasePlan{}, stageErr("plan", fmt.Errorf("suspect count %d outside profile range [%d,%d]",
			len(plan.SuspectIDs), env.Profile.Suspects.Min, env.Profile.Suspects.Max))
	}
	if len(plan.EvidenceSeeds) == 0 {
		return artifact.CasePlan{}, stageErr("plan", fmt.Errorf("plan produced no evidence seeds"))
	}
	if err := env.Store.Save(ctx, req.CaseID, casectx.PathPlanCore, plan); err != nil {
		return artifact.CasePlan{}, stageErr("plan", err)
	}
	return plan, nil
}
