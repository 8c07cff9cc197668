package artifact

// Macro issue categories found by the global consistency pass.
const (
	IssueCrossDocumentInconsistency = "CrossDocumentInconsistency"
	IssueChronologicalGap           = "ChronologicalGap"
	IssueNarrativeContradiction     = "NarrativeContradiction"
	IssueReferenceIntegrity         = "ReferenceIntegrity"
	IssueStructuralCompleteness     = "StructuralCompleteness"
)

// Issue severities, highest first.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// MacroIssue is a bundle-level finding from the global pass. Areas name the
// documents/sections that need the focused pass.
type MacroIssue struct {
	Category    string   `json:"category"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Areas       []string `json:"areas"` // document/media ids needing detail
}

// GlobalAnalysis is the result of one global consistency pass.
type GlobalAnalysis struct {
	Issues                  []MacroIssue `json:"issues"`
	RequiresDetailedAnalysis bool        `json:"requires_detailed_analysis"`
	Assessment              string       `json:"assessment"`
	Fallback                bool         `json:"fallback,omitempty"` // set when the pass degraded to a default
}

// Fix actions the precision editor understands.
const (
	FixUpdateTimestamp = "UpdateTimestamp"
	FixReplaceText     = "ReplaceText"
	FixMoveToAddendum  = "MoveToAddendum"
	FixRemoveReference = "RemoveReference"
)

// IssueFix is a typed, deterministic remedy for one precise issue.
type IssueFix struct {
	Action   string `json:"action"`
	Section  string `json:"section,omitempty"`
	OldText  string `json:"old_text,omitempty"`
	NewText  string `json:"new_text,omitempty"`
	NewValue string `json:"new_value,omitempty"` // for UpdateTimestamp
	RefID    string `json:"ref_id,omitempty"`    // for RemoveReference
}

// PreciseIssue is a located defect plus its remedy, returned by the focused
// pass with enough information to apply without another generation call.
type PreciseIssue struct {
	DocID       string   `json:"doc_id"`
	Field       string   `json:"field,omitempty"`
	Section     string   `json:"section,omitempty"`
	Current     string   `json:"current,omitempty"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Fix         IssueFix `json:"fix"`
}

// FocusedAnalysis is the result of one focused pass over a flagged area.
type FocusedAnalysis struct {
	Area       string         `json:"area"`
	Issues     []PreciseIssue `json:"issues"`
	Assessment string         `json:"assessment"`
	Fallback   bool           `json:"fallback,omitempty"`
}
