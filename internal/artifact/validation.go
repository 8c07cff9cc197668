package artifact

// Validation rule ids emitted by the normalizer.
const (
	RuleUniqueDocumentIDs        = "UNIQUE_DOCUMENT_IDS"
	RuleGatingReferenceIntegrity = "GATING_REFERENCE_INTEGRITY"
	RuleGatingAcyclic            = "GATING_ACYCLIC"
	RuleForensicsCustodyChain    = "FORENSICS_CUSTODY_CHAIN"
	RuleChronologyOrder          = "CHRONOLOGY_ORDER"
	RuleReferenceIntegrity       = "REFERENCE_INTEGRITY"
)

// Validation statuses.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusWarn = "WARN"
)

// ValidationResult is one rule verdict. Structural defects are reported this
// way, never raised as errors.
type ValidationResult struct {
	RuleID      string `json:"rule_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	OffenderID  string `json:"offender_id,omitempty"`
}

// ValidationReport is the full rule-by-rule output of one normalize run.
type ValidationReport struct {
	Results []ValidationResult `json:"results"`
}

// Failed returns every FAIL result.
func (r ValidationReport) Failed() []ValidationResult {
	var out []ValidationResult
	for _, v := range r.Results {
		if v.Status == StatusFail {
			out = append(out, v)
		}
	}
	return out
}

// Clean reports whether no rule failed.
func (r ValidationReport) Clean() bool { return len(r.Failed()) == 0 }
