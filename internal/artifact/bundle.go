package artifact

// GatingNode is one document or media item in the gating graph.
type GatingNode struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"` // document or media
	Gated       bool     `json:"gated"`
	RequiredIDs []string `json:"required_ids,omitempty"`
}

// GatingEdge links an unlocking artifact to the artifact it unlocks.
// Relationship is "unlocks" (from evidence to gated target) or "requires"
// (the reverse view).
type GatingEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

// GatingGraph is derived from gating rules at normalization time, never
// authored directly. Cycle detection results are part of the graph itself.
type GatingGraph struct {
	Nodes     []GatingNode `json:"nodes"`
	Edges     []GatingEdge `json:"edges"`
	HasCycles bool         `json:"has_cycles"`
	Cycles    []string     `json:"cycles,omitempty"` // human-readable node paths
}

// BundleMetadata records how the bundle was produced.
type BundleMetadata struct {
	PipelineID     string   `json:"pipeline_id"`
	Profile        string   `json:"profile"`
	AppliedRules   []string `json:"applied_rules"`
	FixIterations  int      `json:"fix_iterations"`
	ResidualIssues []string `json:"residual_issues,omitempty"`
}

// NormalizedCaseBundle is the canonical aggregate for one case. Created once
// per successful normalize run; the fix loop replaces it wholesale with a
// corrected copy, never mutates it in place.
type NormalizedCaseBundle struct {
	CaseID     string         `json:"case_id"`
	Version    int            `json:"version"`
	Timezone   string         `json:"timezone"`
	Difficulty string         `json:"difficulty"`
	Documents  []CaseDocument `json:"documents"`
	Media      []CaseMedia    `json:"media"`
	Graph      GatingGraph    `json:"gating_graph"`
	Metadata   BundleMetadata `json:"metadata"`
}

// DocumentByID returns the document with the given id, or nil.
func (b *NormalizedCaseBundle) DocumentByID(id string) *CaseDocument {
	for i := range b.Documents {
		if b.Documents[i].DocID == id {
			return &b.Documents[i]
		}
	}
	return nil
}

// MediaByID returns the media item with the given evidence id, or nil.
func (b *NormalizedCaseBundle) MediaByID(id string) *CaseMedia {
	for i := range b.Media {
		if b.Media[i].EvidenceID == id {
			return &b.Media[i]
		}
	}
	return nil
}

// ArtifactIDs returns every document and media id in the bundle.
func (b *NormalizedCaseBundle) ArtifactIDs() map[string]string {
	ids := make(map[string]string, len(b.Documents)+len(b.Media))
	for _, d := range b.Documents {
		ids[d.DocID] = "document"
	}
	for _, m := range b.Media {
		ids[m.EvidenceID] = "media"
	}
	return ids
}
