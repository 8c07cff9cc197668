package redteam

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"caseforge/internal/artifact"
	"caseforge/internal/util/jsonutil"
)

const focusedSystem = `[PURPOSE]
Inspect one flagged area of an investigative case in detail and return machine-actionable fixes.

[CONSTRAINTS]
- Only report defects inside the target artifact or between it and its listed dependencies.
- Every issue must carry a fix with action one of: UpdateTimestamp, ReplaceText, MoveToAddendum, RemoveReference.
- ReplaceText fixes must quote old_text exactly as it appears in the document.
- UpdateTimestamp fixes must put an RFC3339 value in new_value.

[OUTPUT_FORMAT]
JSON only. No markdown, no commentary.`

var focusedSchema = json.RawMessage(`{
  "type": "object",
  "required": ["area", "issues", "assessment"],
  "properties": {
    "area": {"type": "string"},
    "issues": {"type": "array", "items": {"type": "object", "required": ["doc_id", "severity", "description", "fix"]}},
    "assessment": {"type": "string"}
  }
}`)

// focusSlice assembles the minimal payload for one flagged area: the target
// artifact plus its direct gating and reference dependencies, never the whole
// bundle.
func focusSlice(bundle artifact.NormalizedCaseBundle, area string) map[string]any {
	out := map[string]any{"target_id": area}

	depIDs := map[string]bool{}
	if doc := bundle.DocumentByID(area); doc != nil {
		out["target"] = doc
		if doc.Gating != nil {
			for _, id := range doc.Gating.RequiredIDs {
				depIDs[id] = true
			}
		}
		for _, r := range doc.References {
			depIDs[r] = true
		}
	} else if m := bundle.MediaByID(area); m != nil {
		out["target"] = m
		if m.Gating != nil {
			for _, id := range m.Gating.RequiredIDs {
				depIDs[id] = true
			}
		}
		for _, r := range m.References {
			depIDs[r] = true
		}
	}
	// Anything that unlocks or is unlocked by the target is a direct
	// dependency too.
	for _, e := range bundle.Graph.Edges {
		if e.From == area {
			depIDs[e.To] = true
		}
		if e.To == area {
			depIDs[e.From] = true
		}
	}

	// Sorted so the slice, and therefore its content hash, is stable for
	// identical bundle content.
	ids := make([]string, 0, len(depIDs))
	for id := range depIDs {
		if id != area {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var deps []any
	for _, id := range ids {
		if d := bundle.DocumentByID(id); d != nil {
			deps = append(deps, d)
		} else if m := bundle.MediaByID(id); m != nil {
			deps = append(deps, m)
		}
	}
	out["dependencies"] = deps
	out["crime_timezone"] = bundle.Timezone
	return out
}

// Focused runs the detail pass for one flagged area. Like Global, it always
// returns a well-formed analysis, degrading to a fallback on failure.
func (a *Analyzer) Focused(ctx context.Context, bundle artifact.NormalizedCaseBundle, area string) artifact.FocusedAnalysis {
	slice := focusSlice(bundle, area)
	key := Key(ContentHash(slice), "focused", area)
	raw, _, err := a.call(ctx, bundle.CaseID, "redteam-focused", key, focusedSystem, slice, focusedSchema)
	if err != nil {
		return artifact.FocusedAnalysis{
			Area:       area,
			Fallback:   true,
			Assessment: fmt.Sprintf("focused analysis unavailable (%v); area left unrepaired this iteration", err),
		}
	}
	var out artifact.FocusedAnalysis
	if uerr := jsonutil.UnmarshalRaw(raw, &out); uerr != nil {
		return artifact.FocusedAnalysis{
			Area:       area,
			Fallback:   true,
			Assessment: fmt.Sprintf("focused analysis response did not match the expected shape (%v)", uerr),
		}
	}
	if out.Area == "" {
		out.Area = area
	}
	return out
}
