package artifact

// DocumentSection is one named block of generated document text.
type DocumentSection struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// CaseDocument is the generated artifact for one DocumentSpec. Written once
// by the generate stage; the precision editor may correct it in place.
type CaseDocument struct {
	DocID      string            `json:"doc_id"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	CreatedAt  string            `json:"created_at,omitempty"` // in-world RFC3339 timestamp
	Author     string            `json:"author,omitempty"`
	Sections   []DocumentSection `json:"sections"`
	Addendum   []string          `json:"addendum,omitempty"`
	References []string          `json:"references,omitempty"` // ids of evidence/documents mentioned
	Gating     *GatingRule       `json:"gating,omitempty"`
}

// CaseMedia is the generated descriptor for one MediaSpec. It carries a
// textual description the render back end turns into an image or scan.
type CaseMedia struct {
	EvidenceID  string      `json:"evidence_id"`
	Kind        string      `json:"kind"`
	Caption     string      `json:"caption"`
	Description string      `json:"description"`
	CapturedAt  string      `json:"captured_at,omitempty"` // RFC3339
	References  []string    `json:"references,omitempty"`
	Gating      *GatingRule `json:"gating,omitempty"`
}

// RenderResult is what the external renderer reports back per artifact.
// Only the manifest consumes it.
type RenderResult struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Hash      string `json:"hash"`
}
