// Package normalize is the deterministic pass that turns loosely structured
// generated artifacts into the canonical case bundle: it extracts entity ids,
// derives the gating graph, detects cycles, and evaluates the structural
// validation rules. It makes no generation calls.
package normalize

import (
	"fmt"
	"sort"

	"caseforge/internal/artifact"
)

// Input is everything a normalize run consumes, collected from the context
// store by the orchestrator.
type Input struct {
	CaseID     string
	Timezone   string
	Difficulty string
	PipelineID string
	Plan       artifact.CasePlan
	Evidence   []artifact.EvidenceItem
	Documents  []artifact.CaseDocument
	Media      []artifact.CaseMedia
}

// Run builds the normalized bundle and its validation report. Structural
// defects (duplicate ids, cycles, dangling references) are reported in the
// validation results, never returned as errors; the only error case is input
// that is structurally absent (no documents at all).
func Run(in Input, version int) (artifact.NormalizedCaseBundle, artifact.ValidationReport, error) {
	if len(in.Documents) == 0 {
		return artifact.NormalizedCaseBundle{}, artifact.ValidationReport{},
			fmt.Errorf("normalize: case %s has no documents", in.CaseID)
	}

	docs := append([]artifact.CaseDocument(nil), in.Documents...)
	media := append([]artifact.CaseMedia(nil), in.Media...)
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	sort.Slice(media, func(i, j int) bool { return media[i].EvidenceID < media[j].EvidenceID })

	graph := BuildGraph(docs, media)

	bundle := artifact.NormalizedCaseBundle{
		CaseID:     in.CaseID,
		Version:    version,
		Timezone:   in.Timezone,
		Difficulty: in.Difficulty,
		Documents:  docs,
		Media:      media,
		Graph:      graph,
		Metadata: artifact.BundleMetadata{
			PipelineID:   in.PipelineID,
			Profile:      in.Difficulty,
			AppliedRules: append([]string(nil), AppliedRules...),
		},
	}

	ids := bundle.ArtifactIDs()
	var report artifact.ValidationReport
	report.Results = append(report.Results, checkUniqueIDs(in)...)
	report.Results = append(report.Results, checkGatingReferences(in, ids)...)
	report.Results = append(report.Results, checkAcyclic(graph)...)
	report.Results = append(report.Results, checkReferences(in, ids)...)
	report.Results = append(report.Results, checkChronology(in)...)
	report.Results = append(report.Results, checkCustodyChains(in)...)

	return bundle, report, nil
}
