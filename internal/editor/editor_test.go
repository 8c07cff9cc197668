package editor

import (
	"testing"

	"caseforge/internal/artifact"
)

func testBundle() artifact.NormalizedCaseBundle {
	return artifact.NormalizedCaseBundle{
		CaseID:  "case_t",
		Version: 1,
		Documents: []artifact.CaseDocument{
			{
				DocID:     "doc_001",
				Type:      "police_report",
				Title:     "Initial Report",
				CreatedAt: "2026-03-02T08:00:00Z",
				Sections: []artifact.DocumentSection{
					{Name: "summary", Body: "The victim was found at 9pm near the docks."},
					{Name: "witnesses", Body: "Two witnesses were interviewed."},
				},
				References: []string{"ev_001", "ev_002"},
			},
		},
		Media: []artifact.CaseMedia{
			{
				EvidenceID:  "ev_001",
				Kind:        "photo",
				Caption:     "Broken window",
				Description: "A shattered pane photographed at 10pm.",
			},
		},
	}
}

func issueFor(id string, fix artifact.IssueFix) artifact.PreciseIssue {
	return artifact.PreciseIssue{
		DocID:       id,
		Severity:    artifact.SeverityHigh,
		Description: "test issue",
		Fix:         fix,
	}
}

func TestReplaceText(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action:  artifact.FixReplaceText,
			Section: "summary",
			OldText: "9pm",
			NewText: "10pm",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Applied) != 1 || len(res.Unapplied) != 0 {
		t.Fatalf("applied=%d unapplied=%d", len(res.Applied), len(res.Unapplied))
	}
	got := res.Bundle.DocumentByID("doc_001").Sections[0].Body
	if got != "The victim was found at 10pm near the docks." {
		t.Fatalf("unexpected body %q", got)
	}
	if res.Bundle.Version != 2 {
		t.Fatalf("version = %d, want 2", res.Bundle.Version)
	}
}

func TestReplaceTextMissingOldTextIsSkippedNotFatal(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action:  artifact.FixReplaceText,
			Section: "summary",
			OldText: "midnight",
			NewText: "10pm",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Applied) != 0 {
		t.Fatalf("fix should not have applied: %+v", res.Applied)
	}
	if len(res.Unapplied) != 1 || res.Unapplied[0].Reason == "" {
		t.Fatalf("expected one unapplied fix with a reason, got %+v", res.Unapplied)
	}
}

func TestUpdateTimestamp(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action:   artifact.FixUpdateTimestamp,
			NewValue: "2026-03-02T09:30:00Z",
		}),
		issueFor("ev_001", artifact.IssueFix{
			Action:   artifact.FixUpdateTimestamp,
			NewValue: "2026-03-01T23:15:00Z",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Applied) != 2 {
		t.Fatalf("expected both timestamp fixes applied, got %+v", res.Unapplied)
	}
	if got := res.Bundle.DocumentByID("doc_001").CreatedAt; got != "2026-03-02T09:30:00Z" {
		t.Fatalf("document timestamp not updated: %q", got)
	}
	if got := res.Bundle.MediaByID("ev_001").CapturedAt; got != "2026-03-01T23:15:00Z" {
		t.Fatalf("media timestamp not updated: %q", got)
	}
}

func TestMoveToAddendum(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action:  artifact.FixMoveToAddendum,
			Section: "witnesses",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	doc := res.Bundle.DocumentByID("doc_001")
	if len(doc.Sections) != 1 || doc.Sections[0].Name != "summary" {
		t.Fatalf("section not removed: %+v", doc.Sections)
	}
	if len(doc.Addendum) != 1 || doc.Addendum[0] != "Two witnesses were interviewed." {
		t.Fatalf("section body not moved to addendum: %+v", doc.Addendum)
	}
}

func TestRemoveReference(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action: artifact.FixRemoveReference,
			RefID:  "ev_002",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	refs := res.Bundle.DocumentByID("doc_001").References
	if len(refs) != 1 || refs[0] != "ev_001" {
		t.Fatalf("reference not removed: %v", refs)
	}
}

func TestUnknownTargetAndActionAreSkipped(t *testing.T) {
	res, err := ApplyFixes(testBundle(), []artifact.PreciseIssue{
		issueFor("doc_404", artifact.IssueFix{Action: artifact.FixReplaceText, OldText: "x"}),
		issueFor("doc_001", artifact.IssueFix{Action: "Regenerate"}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Unapplied) != 2 {
		t.Fatalf("expected two skips, got %+v", res.Unapplied)
	}
}

func TestInputBundleIsNotMutated(t *testing.T) {
	in := testBundle()
	_, err := ApplyFixes(in, []artifact.PreciseIssue{
		issueFor("doc_001", artifact.IssueFix{
			Action:  artifact.FixReplaceText,
			Section: "summary",
			OldText: "9pm",
			NewText: "10pm",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if in.Documents[0].Sections[0].Body != "The victim was found at 9pm near the docks." {
		t.Fatalf("input bundle mutated: %q", in.Documents[0].Sections[0].Body)
	}
}
