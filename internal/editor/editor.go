// Package editor applies located, typed fixes to bundle content directly
// instead of regenerating documents. Each fix is a narrow, auditable edit;
// fixes that cannot be located are skipped and recorded, never fatal.
package editor

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"caseforge/internal/artifact"
)

// UnappliedFix records a fix that could not be located, with the reason.
type UnappliedFix struct {
	Issue  artifact.PreciseIssue `json:"issue"`
	Reason string                `json:"reason"`
}

// Result is the outcome of one fix batch.
type Result struct {
	Bundle    artifact.NormalizedCaseBundle
	Applied   []artifact.PreciseIssue
	Unapplied []UnappliedFix
}

// ApplyFixes applies a batch of fixes to a copy of the bundle and returns
// the corrected bundle. The input bundle is never mutated; the fix loop
// replaces it wholesale with the result.
func ApplyFixes(bundle artifact.NormalizedCaseBundle, issues []artifact.PreciseIssue) (Result, error) {
	out, err := cloneBundle(bundle)
	if err != nil {
		return Result{}, fmt.Errorf("editor: clone bundle: %w", err)
	}
	res := Result{}
	for _, issue := range issues {
		if reason := applyOne(&out, issue); reason != "" {
			log.Printf("editor: fix %s on %s skipped: %s", issue.Fix.Action, issue.DocID, reason)
			res.Unapplied = append(res.Unapplied, UnappliedFix{Issue: issue, Reason: reason})
		} else {
			res.Applied = append(res.Applied, issue)
		}
	}
	out.Version = bundle.Version + 1
	res.Bundle = out
	return res, nil
}

// applyOne returns "" on success, or the reason the fix was skipped.
func applyOne(b *artifact.NormalizedCaseBundle, issue artifact.PreciseIssue) string {
	doc := b.DocumentByID(issue.DocID)
	media := b.MediaByID(issue.DocID)
	if doc == nil && media == nil {
		return fmt.Sprintf("no artifact with id %q", issue.DocID)
	}

	switch issue.Fix.Action {
	case artifact.FixReplaceText:
		if doc != nil {
			return replaceText(doc, issue)
		}
		return replaceMediaText(media, issue)

	case artifact.FixUpdateTimestamp:
		if issue.Fix.NewValue == "" {
			return "UpdateTimestamp without new_value"
		}
		if doc != nil {
			doc.CreatedAt = issue.Fix.NewValue
		} else {
			media.CapturedAt = issue.Fix.NewValue
		}
		return ""

	case artifact.FixMoveToAddendum:
		if doc == nil {
			return "MoveToAddendum targets a media item"
		}
		name := issue.Fix.Section
		if name == "" {
			name = issue.Section
		}
		for i, s := range doc.Sections {
			if s.Name == name {
				doc.Addendum = append(doc.Addendum, s.Body)
				doc.Sections = append(doc.Sections[:i], doc.Sections[i+1:]...)
				return ""
			}
		}
		return fmt.Sprintf("section %q not found", name)

	case artifact.FixRemoveReference:
		var refs []string
		if doc != nil {
			refs = doc.References
		} else {
			refs = media.References
		}
		for i, r := range refs {
			if r == issue.Fix.RefID {
				refs = append(refs[:i], refs[i+1:]...)
				if doc != nil {
					doc.References = refs
				} else {
					media.References = refs
				}
				return ""
			}
		}
		return fmt.Sprintf("reference %q not present", issue.Fix.RefID)

	default:
		return fmt.Sprintf("unknown fix action %q", issue.Fix.Action)
	}
}

func replaceText(doc *artifact.CaseDocument, issue artifact.PreciseIssue) string {
	old := issue.Fix.OldText
	if old == "" {
		return "ReplaceText without old_text"
	}
	section := issue.Fix.Section
	if section == "" {
		section = issue.Section
	}
	for i := range doc.Sections {
		if section != "" && doc.Sections[i].Name != section {
			continue
		}
		if strings.Contains(doc.Sections[i].Body, old) {
			doc.Sections[i].Body = strings.Replace(doc.Sections[i].Body, old, issue.Fix.NewText, 1)
			return ""
		}
	}
	return fmt.Sprintf("old_text not found%s", inSection(section))
}

func replaceMediaText(m *artifact.CaseMedia, issue artifact.PreciseIssue) string {
	old := issue.Fix.OldText
	if old == "" {
		return "ReplaceText without old_text"
	}
	if strings.Contains(m.Description, old) {
		m.Description = strings.Replace(m.Description, old, issue.Fix.NewText, 1)
		return ""
	}
	if strings.Contains(m.Caption, old) {
		m.Caption = strings.Replace(m.Caption, old, issue.Fix.NewText, 1)
		return ""
	}
	return "old_text not found in caption or description"
}

func inSection(section string) string {
	if section == "" {
		return ""
	}
	return fmt.Sprintf(" in section %q", section)
}

func cloneBundle(b artifact.NormalizedCaseBundle) (artifact.NormalizedCaseBundle, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return artifact.NormalizedCaseBundle{}, err
	}
	var out artifact.NormalizedCaseBundle
	if err := json.Unmarshal(raw, &out); err != nil {
		return artifact.NormalizedCaseBundle{}, err
	}
	return out, nil
}
