package artifact

// CasePlan is the stage-1 output: the narrative skeleton everything else
// expands from.
type CasePlan struct {
	Title        string   `json:"title"`
	Setting      string   `json:"setting"`
	CrimeSummary string   `json:"crime_summary"`
	VictimName   string   `json:"victim_name"`
	CrimeTime    string   `json:"crime_time"` // RFC3339 in the case timezone
	CulpritID    string   `json:"culprit_id"`
	SuspectIDs   []string `json:"suspect_ids"`
	EvidenceSeeds []EvidenceSeed `json:"evidence_seeds"`
	TimelineBeats []TimelineBeat `json:"timeline_beats"`
	RedHerrings  []string `json:"red_herrings,omitempty"`
}

// EvidenceSeed is a plan-level stub the expand stage turns into a full
// evidence item.
type EvidenceSeed struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Hint string `json:"hint"`
}

type TimelineBeat struct {
	At          string `json:"at"` // RFC3339
	Description string `json:"description"`
	SuspectID   string `json:"suspect_id,omitempty"`
}

// Suspect is the stage-2 expansion of one suspect id from the plan.
type Suspect struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Occupation string   `json:"occupation"`
	Motive     string   `json:"motive"`
	Alibi      string   `json:"alibi"`
	IsCulprit  bool     `json:"is_culprit"`
	RedHerring bool     `json:"red_herring"`
	Relations  []string `json:"relations,omitempty"`
}

// EvidenceItem is the stage-2 expansion of one piece of evidence.
type EvidenceItem struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"` // physical, forensic, testimony, digital
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	FoundAt      string   `json:"found_at,omitempty"`
	CollectedAt  string   `json:"collected_at,omitempty"` // RFC3339
	CustodyChain []string `json:"custody_chain,omitempty"`
	ImplicatesID string   `json:"implicates_id,omitempty"`
	RedHerring   bool     `json:"red_herring"`
}
