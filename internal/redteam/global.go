package redteam

import (
	"context"
	"encoding/json"
	"fmt"

	"caseforge/internal/artifact"
	"caseforge/internal/util/jsonutil"
)

const globalSystem = `[PURPOSE]
Adversarially review a complete investigative-case bundle for structural and narrative defects.

[CONSTRAINTS]
- Categories: CrossDocumentInconsistency, ChronologicalGap, NarrativeContradiction, ReferenceIntegrity, StructuralCompleteness.
- Severity: high, medium, low.
- areas must list the exact document/media ids needing detailed inspection.
- Set requires_detailed_analysis=true only when at least one area needs a focused pass.

[OUTPUT_FORMAT]
JSON only. No markdown, no commentary.`

var globalSchema = json.RawMessage(`{
  "type": "object",
  "required": ["issues", "requires_detailed_analysis", "assessment"],
  "properties": {
    "issues": {"type": "array", "items": {"type": "object", "required": ["category", "severity", "description", "areas"]}},
    "requires_detailed_analysis": {"type": "boolean"},
    "assessment": {"type": "string"}
  }
}`)

// Global runs the macro pass over the full bundle. The returned analysis is
// always well-formed; on persistent gateway failure it is an explicit
// fallback with an empty issue list.
func (a *Analyzer) Global(ctx context.Context, bundle artifact.NormalizedCaseBundle) artifact.GlobalAnalysis {
	key := Key(ContentHash(bundle), "global")
	raw, _, err := a.call(ctx, bundle.CaseID, "redteam-global", key, globalSystem, bundle, globalSchema)
	if err != nil {
		return artifact.GlobalAnalysis{
			Fallback:   true,
			Assessment: fmt.Sprintf("global analysis unavailable (%v); proceeding without macro findings", err),
		}
	}
	var out artifact.GlobalAnalysis
	if uerr := jsonutil.UnmarshalRaw(raw, &out); uerr != nil {
		return artifact.GlobalAnalysis{
			Fallback:   true,
			Assessment: fmt.Sprintf("global analysis response did not match the expected shape (%v)", uerr),
		}
	}
	return out
}
