package artifact

// GenerationRequest is the inbound seed for one case. Difficulty may be empty,
// in which case the orchestrator picks a profile at random.
type GenerationRequest struct {
	CaseID         string   `json:"case_id"`
	Difficulty     string   `json:"difficulty,omitempty"`
	Timezone       string   `json:"timezone"`
	GenerateImages bool     `json:"generate_images"`
	RenderFiles    bool     `json:"render_files"`
	Constraints    []string `json:"constraints,omitempty"`
}

// ContextRef is a symbolic "@type/id" token pointing into the context store.
// It is a lookup key, never an ownership pointer.
type ContextRef string
