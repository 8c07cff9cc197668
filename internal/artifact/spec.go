package artifact

// GatingRule locks an artifact behind one or more evidence/document ids.
// Action is what the player must do; RequiredIDs are the unlocking artifacts.
type GatingRule struct {
	Action      string   `json:"action"`
	RequiredIDs []string `json:"required_ids"`
}

// DocumentSpec is a stage-3 (design) output describing what a document
// generation task must produce. Immutable once written; consumed by exactly
// one generation task.
type DocumentSpec struct {
	DocID            string      `json:"doc_id"`
	Type             string      `json:"type"` // police_report, autopsy, interview, forensics, news_article, ...
	Title            string      `json:"title"`
	RequiredSections []string    `json:"required_sections"`
	TargetWords      int         `json:"target_words"`
	SubjectIDs       []string    `json:"subject_ids,omitempty"` // suspects/evidence this document covers
	Gating           *GatingRule `json:"gating,omitempty"`
}

// MediaSpec describes one media descriptor (photo, audio transcript, scan)
// to generate.
type MediaSpec struct {
	EvidenceID  string      `json:"evidence_id"`
	Kind        string      `json:"kind"` // photo, audio_transcript, document_scan
	Caption     string      `json:"caption"`
	Constraints []string    `json:"constraints,omitempty"`
	Gating      *GatingRule `json:"gating,omitempty"`
}

// CaseDesign bundles the stage-3 output: every spec the generate stage fans
// out over.
type CaseDesign struct {
	Documents []DocumentSpec `json:"documents"`
	Media     []MediaSpec    `json:"media"`
}
