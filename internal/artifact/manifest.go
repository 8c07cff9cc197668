package artifact

// ManifestEntry describes one stored artifact file.
type ManifestEntry struct {
	ID           string `json:"id"`
	RelativePath string `json:"relative_path"`
	Type         string `json:"type"`
	Gated        bool   `json:"gated"`
	Hash         string `json:"hash"`
	SizeBytes    int64  `json:"size_bytes"`
}

// VisibilityPartition tells the game-facing API what to expose before any
// unlock has happened.
type VisibilityPartition struct {
	AlwaysVisible       []string `json:"always_visible"`
	GatedVisible        []string `json:"gated_visible"`
	HiddenUntilUnlocked []string `json:"hidden_until_unlocked"`
}

// CaseManifest is derived from the bundle at package time.
type CaseManifest struct {
	CaseID     string              `json:"case_id"`
	Entries    []ManifestEntry     `json:"entries"`
	Visibility VisibilityPartition `json:"visibility"`
}
