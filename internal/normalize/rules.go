package normalize

import (
	"fmt"
	"time"

	"caseforge/internal/artifact"
)

// AppliedRules lists every validation rule a normalize run evaluates, in
// order. Recorded into bundle metadata.
var AppliedRules = []string{
	artifact.RuleUniqueDocumentIDs,
	artifact.RuleGatingReferenceIntegrity,
	artifact.RuleGatingAcyclic,
	artifact.RuleReferenceIntegrity,
	artifact.RuleChronologyOrder,
	artifact.RuleForensicsCustodyChain,
}

func checkUniqueIDs(in Input) []artifact.ValidationResult {
	seen := make(map[string]int)
	for _, d := range in.Documents {
		seen[d.DocID]++
	}
	for _, m := range in.Media {
		seen[m.EvidenceID]++
	}
	var out []artifact.ValidationResult
	for id, n := range seen {
		if n > 1 {
			out = append(out, artifact.ValidationResult{
				RuleID:      artifact.RuleUniqueDocumentIDs,
				Status:      artifact.StatusFail,
				Description: fmt.Sprintf("id %q used by %d artifacts; ids must be unique", id, n),
				OffenderID:  id,
			})
		}
	}
	if len(out) == 0 {
		out = append(out, pass(artifact.RuleUniqueDocumentIDs, "all document and media ids are unique"))
	}
	return out
}

func checkGatingReferences(in Input, ids map[string]string) []artifact.ValidationResult {
	// Evidence items are legal gate sources even without a media descriptor.
	known := make(map[string]bool, len(ids)+len(in.Evidence))
	for id := range ids {
		known[id] = true
	}
	for _, ev := range in.Evidence {
		known[ev.ID] = true
	}

	var out []artifact.ValidationResult
	check := func(ownerID string, rule *artifact.GatingRule) {
		if rule == nil {
			return
		}
		for _, req := range rule.RequiredIDs {
			if !known[req] {
				out = append(out, artifact.ValidationResult{
					RuleID:      artifact.RuleGatingReferenceIntegrity,
					Status:      artifact.StatusFail,
					Description: fmt.Sprintf("artifact %q is gated on %q, which does not exist", ownerID, req),
					OffenderID:  ownerID,
				})
			}
		}
	}
	for _, d := range in.Documents {
		check(d.DocID, d.Gating)
	}
	for _, m := range in.Media {
		check(m.EvidenceID, m.Gating)
	}
	if len(out) == 0 {
		out = append(out, pass(artifact.RuleGatingReferenceIntegrity, "every gating rule points at an existing artifact"))
	}
	return out
}

func checkAcyclic(g artifact.GatingGraph) []artifact.ValidationResult {
	if !g.HasCycles {
		return []artifact.ValidationResult{pass(artifact.RuleGatingAcyclic, "gating graph is acyclic")}
	}
	out := make([]artifact.ValidationResult, 0, len(g.Cycles))
	for _, c := range g.Cycles {
		out = append(out, artifact.ValidationResult{
			RuleID:      artifact.RuleGatingAcyclic,
			Status:      artifact.StatusFail,
			Description: c,
		})
	}
	return out
}

func checkReferences(in Input, ids map[string]string) []artifact.ValidationResult {
	// Evidence items are legal reference targets even when they have no
	// media descriptor of their own.
	known := make(map[string]bool, len(ids)+len(in.Evidence))
	for id := range ids {
		known[id] = true
	}
	for _, ev := range in.Evidence {
		known[ev.ID] = true
	}
	for _, s := range in.Plan.SuspectIDs {
		known[s] = true
	}

	var out []artifact.ValidationResult
	for _, d := range in.Documents {
		for _, ref := range d.References {
			if !known[ref] {
				out = append(out, artifact.ValidationResult{
					RuleID:      artifact.RuleReferenceIntegrity,
					Status:      artifact.StatusFail,
					Description: fmt.Sprintf("document %q references %q, which does not exist", d.DocID, ref),
					OffenderID:  d.DocID,
				})
			}
		}
	}
	for _, m := range in.Media {
		for _, ref := range m.References {
			if !known[ref] {
				out = append(out, artifact.ValidationResult{
					RuleID:      artifact.RuleReferenceIntegrity,
					Status:      artifact.StatusFail,
					Description: fmt.Sprintf("media %q references %q, which does not exist", m.EvidenceID, ref),
					OffenderID:  m.EvidenceID,
				})
			}
		}
	}
	if len(out) == 0 {
		out = append(out, pass(artifact.RuleReferenceIntegrity, "all cross-references resolve"))
	}
	return out
}

func checkChronology(in Input) []artifact.ValidationResult {
	var out []artifact.ValidationResult
	crime, crimeErr := time.Parse(time.RFC3339, in.Plan.CrimeTime)
	for _, d := range in.Documents {
		if d.CreatedAt == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			out = append(out, artifact.ValidationResult{
				RuleID:      artifact.RuleChronologyOrder,
				Status:      artifact.StatusWarn,
				Description: fmt.Sprintf("document %q has unparseable created_at %q", d.DocID, d.CreatedAt),
				OffenderID:  d.DocID,
			})
			continue
		}
		if crimeErr == nil && ts.Before(crime) {
			out = append(out, artifact.ValidationResult{
				RuleID:      artifact.RuleChronologyOrder,
				Status:      artifact.StatusFail,
				Description: fmt.Sprintf("document %q is dated %s, before the crime at %s", d.DocID, d.CreatedAt, in.Plan.CrimeTime),
				OffenderID:  d.DocID,
			})
		}
	}
	if len(out) == 0 {
		out = append(out, pass(artifact.RuleChronologyOrder, "document timestamps are consistent with the crime time"))
	}
	return out
}

func checkCustodyChains(in Input) []artifact.ValidationResult {
	var out []artifact.ValidationResult
	for _, ev := range in.Evidence {
		if ev.Kind != "forensic" {
			continue
		}
		if len(ev.CustodyChain) < 2 {
			out = append(out, artifact.ValidationResult{
				RuleID:      artifact.RuleForensicsCustodyChain,
				Status:      artifact.StatusWarn,
				Description: fmt.Sprintf("forensic evidence %q has a custody chain of %d handlers; expected at least 2", ev.ID, len(ev.CustodyChain)),
				OffenderID:  ev.ID,
			})
		}
	}
	if len(out) == 0 {
		out = append(out, pass(artifact.RuleForensicsCustodyChain, "forensic custody chains are complete"))
	}
	return out
}

func pass(rule, desc string) artifact.ValidationResult {
	return artifact.ValidationResult{RuleID: rule, Status: artifact.StatusPass, Description: desc}
}
