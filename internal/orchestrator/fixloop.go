package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/editor"
	"caseforge/internal/normalize"
)

// collectGenerated loads every generated document and media item from the
// context store.
func (o *Orchestrator) collectGenerated(ctx context.Context, caseID string) ([]artifact.CaseDocument, []artifact.CaseMedia, error) {
	docPaths, err := o.Store.ListUnder(ctx, caseID, casectx.PathGenerateDocs)
	if err != nil {
		return nil, nil, err
	}
	var docs []artifact.CaseDocument
	for _, p := range docPaths {
		var d artifact.CaseDocument
		if err := o.Store.Load(ctx, caseID, p, &d); err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", p, err)
		}
		docs = append(docs, d)
	}
	mediaPaths, err := o.Store.ListUnder(ctx, caseID, casectx.PathGenerateMedia)
	if err != nil {
		return nil, nil, err
	}
	var media []artifact.CaseMedia
	for _, p := range mediaPaths {
		var m artifact.CaseMedia
		if err := o.Store.Load(ctx, caseID, p, &m); err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", p, err)
		}
		media = append(media, m)
	}
	return docs, media, nil
}

// normalizeInput assembles everything a normalize run needs from the store.
func (o *Orchestrator) normalizeInput(ctx context.Context, st *Status, caseID, timezone string) (normalize.Input, error) {
	in := normalize.Input{
		CaseID:     caseID,
		Timezone:   timezone,
		Difficulty: st.Difficulty,
		PipelineID: st.PipelineID,
	}
	if err := o.Store.Load(ctx, caseID, casectx.PathPlanCore, &in.Plan); err != nil {
		return in, fmt.Errorf("plan/core unavailable: %w", err)
	}
	evPaths, err := o.Store.ListUnder(ctx, caseID, casectx.PathExpandEvidence)
	if err != nil {
		return in, err
	}
	for _, p := range evPaths {
		var ev artifact.EvidenceItem
		if err := o.Store.Load(ctx, caseID, p, &ev); err != nil {
			return in, fmt.Errorf("load %s: %w", p, err)
		}
		in.Evidence = append(in.Evidence, ev)
	}
	in.Documents, in.Media, err = o.collectGenerated(ctx, caseID)
	return in, err
}

// finish runs normalize, the analyze-fix loop, and packaging.
func (o *Orchestrator) finish(ctx context.Context, st *Status, req artifact.GenerationRequest, maxIter int) (artifact.CaseManifest, error) {
	caseID := req.CaseID

	if err := o.step(ctx, st, StepNormalize, func() error {
		in, err := o.normalizeInput(ctx, st, caseID, req.Timezone)
		if err != nil {
			return err
		}
		bundle, report, err := normalize.Run(in, 1)
		if err != nil {
			return err
		}
		if err := o.Store.Save(ctx, caseID, casectx.PathBundle, bundle); err != nil {
			return err
		}
		return o.Store.Save(ctx, caseID, casectx.PathReport, report)
	}); err != nil {
		return artifact.CaseManifest{}, err
	}

	var bundle artifact.NormalizedCaseBundle
	var report artifact.ValidationReport
	if err := o.Store.Load(ctx, caseID, casectx.PathBundle, &bundle); err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("normalized bundle unavailable: %w", err)
	}
	if err := o.Store.Load(ctx, caseID, casectx.PathReport, &report); err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("validation report unavailable: %w", err)
	}

	if err := o.step(ctx, st, StepRuleValidate, func() error {
		for _, f := range report.Failed() {
			o.logf("%s: rule %s failed on %s: %s", caseID, f.RuleID, f.OffenderID, f.Description)
		}
		return nil
	}); err != nil {
		return artifact.CaseManifest{}, err
	}

	bundle, err := o.fixLoop(ctx, st, req, bundle, report, maxIter)
	if err != nil {
		return artifact.CaseManifest{}, err
	}

	if err := o.step(ctx, st, StepPackage, func() error {
		var renders []artifact.RenderResult
		// Render results are optional; absence just means hash-only entries.
		_ = o.Store.Load(ctx, caseID, casectx.PathRenderResults, &renders)
		manifest, perr := o.Packager.Package(ctx, bundle, renders)
		if perr != nil {
			return perr
		}
		return o.Store.Save(ctx, caseID, casectx.PathManifest, manifest)
	}); err != nil {
		return artifact.CaseManifest{}, err
	}

	// Loaded back rather than captured from the step closure so a resumed run
	// that skips the completed package step still returns the manifest.
	var manifest artifact.CaseManifest
	if err := o.Store.Load(ctx, caseID, casectx.PathManifest, &manifest); err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("manifest unavailable: %w", err)
	}
	return manifest, nil
}

// fixLoop alternates analysis and precision edits until the bundle is clean
// or the iteration cap is hit. Hitting the cap is a soft success: the case
// ships with residual issues recorded in its metadata.
func (o *Orchestrator) fixLoop(ctx context.Context, st *Status, req artifact.GenerationRequest, bundle artifact.NormalizedCaseBundle, report artifact.ValidationReport, maxIter int) (artifact.NormalizedCaseBundle, error) {
	caseID := req.CaseID
	var residual []string

	for iter := st.FixIterations; iter < maxIter; iter++ {
		o.emit(caseID, StepRedTeam, "started", fmt.Sprintf("iteration %d", iter+1))
		global := o.Analyzer.Global(ctx, bundle)

		residual = outstanding(global, report)
		areas := areasNeedingDetail(global, report)
		if len(residual) == 0 && len(areas) == 0 {
			o.logf("%s: bundle clean after %d fix iterations", caseID, iter)
			o.emit(caseID, StepRedTeam, "completed", "no outstanding issues")
			residual = nil
			break
		}
		if len(areas) == 0 {
			// Macro issues without inspectable areas are unfixable here.
			o.logf("%s: %d issues but no areas to inspect, stopping repair", caseID, len(residual))
			break
		}

		// Focused pass per flagged area, fanned out like any other batch.
		var mu sync.Mutex
		var issues []artifact.PreciseIssue
		fanOut(ctx, o.Concurrency, areas, func(ctx context.Context, area string) error {
			fa := o.Analyzer.Focused(ctx, bundle, area)
			mu.Lock()
			issues = append(issues, fa.Issues...)
			mu.Unlock()
			return nil
		})
		if len(issues) == 0 {
			o.logf("%s: focused analysis found nothing actionable", caseID)
			break
		}

		o.emit(caseID, StepFix, "started", fmt.Sprintf("%d fixes", len(issues)))
		res, err := editor.ApplyFixes(bundle, issues)
		if err != nil {
			return bundle, err
		}
		o.logf("%s: iteration %d applied %d fixes, %d unapplied", caseID, iter+1, len(res.Applied), len(res.Unapplied))

		// Persist corrected artifacts, then re-validate by re-running the
		// normalizer over them.
		for _, d := range res.Bundle.Documents {
			if err := o.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathGenerateDocs, d.DocID), d); err != nil {
				return bundle, err
			}
		}
		for _, m := range res.Bundle.Media {
			if err := o.Store.Save(ctx, caseID, casectx.ItemPath(casectx.PathGenerateMedia, m.EvidenceID), m); err != nil {
				return bundle, err
			}
		}
		in, err := o.normalizeInput(ctx, st, caseID, req.Timezone)
		if err != nil {
			return bundle, err
		}
		newBundle, newReport, err := normalize.Run(in, bundle.Version+1)
		if err != nil {
			return bundle, err
		}
		bundle, report = newBundle, newReport

		st.FixIterations = iter + 1
		bundle.Metadata.FixIterations = st.FixIterations
		if err := o.Store.Save(ctx, caseID, casectx.PathBundle, bundle); err != nil {
			return bundle, err
		}
		if err := o.Store.Save(ctx, caseID, casectx.PathReport, report); err != nil {
			return bundle, err
		}
		o.saveStatus(ctx, st)
		o.emit(caseID, StepFix, "completed", fmt.Sprintf("bundle v%d", bundle.Version))
	}

	if len(residual) > 0 {
		// The loop's last analysis predates its last fix batch; re-evaluate
		// the final bundle so the recorded residuals reflect what actually
		// ships. The analyzer cache makes this free when nothing changed.
		residual = outstanding(o.Analyzer.Global(ctx, bundle), report)
	}
	if len(residual) > 0 {
		o.logf("%s: fix iteration cap reached with %d residual issues (soft success)", caseID, len(residual))
	}
	bundle.Metadata.FixIterations = st.FixIterations
	bundle.Metadata.ResidualIssues = residual
	if err := o.Store.Save(ctx, caseID, casectx.PathBundle, bundle); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// outstanding lists high/medium macro issues plus structural rule failures.
func outstanding(global artifact.GlobalAnalysis, report artifact.ValidationReport) []string {
	var out []string
	for _, is := range global.Issues {
		if is.Severity == artifact.SeverityHigh || is.Severity == artifact.SeverityMedium {
			out = append(out, fmt.Sprintf("%s[%s]: %s", is.Category, is.Severity, is.Description))
		}
	}
	for _, f := range report.Failed() {
		out = append(out, fmt.Sprintf("%s: %s", f.RuleID, f.Description))
	}
	return out
}

// areasNeedingDetail unions the areas flagged by high/medium macro issues
// with the offenders of failed structural rules.
func areasNeedingDetail(global artifact.GlobalAnalysis, report artifact.ValidationReport) []string {
	set := make(map[string]bool)
	for _, is := range global.Issues {
		if is.Severity != artifact.SeverityHigh && is.Severity != artifact.SeverityMedium {
			continue
		}
		for _, a := range is.Areas {
			set[a] = true
		}
	}
	for _, f := range report.Failed() {
		if f.OffenderID != "" {
			set[f.OffenderID] = true
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
