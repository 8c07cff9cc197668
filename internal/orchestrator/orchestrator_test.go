package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/llmclient"
	"caseforge/internal/packager"
	"caseforge/internal/profile"
	"caseforge/internal/redteam"
)

// inputJSON extracts the JSON payload from a rendered user prompt.
func inputJSON(user string) []byte {
	_, after, ok := strings.Cut(user, "[INPUT]\n")
	if !ok {
		return []byte(user)
	}
	return []byte(after)
}

func rookiePlan() artifact.CasePlan {
	return artifact.CasePlan{
		Title:        "The Dockside Affair",
		Setting:      "a harbor town",
		CrimeSummary: "a warehouse manager found dead",
		VictimName:   "M. Keller",
		CrimeTime:    "2026-03-01T22:00:00Z",
		CulpritID:    "sus_001",
		SuspectIDs:   []string{"sus_001", "sus_002"},
		EvidenceSeeds: []artifact.EvidenceSeed{
			{ID: "ev_001", Kind: "physical", Hint: "broken window"},
			{ID: "ev_002", Kind: "forensic", Hint: "residue on the desk"},
			{ID: "ev_003", Kind: "testimony", Hint: "the night watchman"},
			{ID: "ev_004", Kind: "digital", Hint: "deleted ledger entries"},
		},
		TimelineBeats: []artifact.TimelineBeat{
			{At: "2026-03-01T21:30:00Z", Description: "victim last seen"},
		},
	}
}

func rookieDesign() artifact.CaseDesign {
	var d artifact.CaseDesign
	for i := 1; i <= 6; i++ {
		spec := artifact.DocumentSpec{
			DocID:            fmt.Sprintf("doc_%03d", i),
			Type:             "police_report",
			Title:            fmt.Sprintf("Report %d", i),
			RequiredSections: []string{"summary"},
			TargetWords:      150,
		}
		if i == 6 {
			spec.Type = "forensics"
			spec.Gating = &artifact.GatingRule{Action: "examine", RequiredIDs: []string{"ev_002"}}
		}
		d.Documents = append(d.Documents, spec)
	}
	d.Media = append(d.Media, artifact.MediaSpec{
		EvidenceID: "ev_001", Kind: "photo", Caption: "The broken window",
	})
	return d
}

// newPipelineFake wires responders for every stage of a small rookie case.
// The initial doc_001 carries a deliberate "9pm" inconsistency; the global
// pass flags it until a ReplaceText fix turns it into "10pm".
func newPipelineFake() *llmclient.FakeClient {
	fake := llmclient.NewFakeClient()
	fake.Respond("plan", rookiePlan())
	fake.Respond("expand-suspect", llmclient.RespondFunc(func(user string) any {
		var in struct {
			SuspectID string `json:"suspect_id"`
		}
		_ = json.Unmarshal(inputJSON(user), &in)
		return artifact.Suspect{
			ID: in.SuspectID, Name: "Name " + in.SuspectID, Occupation: "clerk",
			Motive: "money", Alibi: "at the tavern", IsCulprit: in.SuspectID == "sus_001",
		}
	}))
	fake.Respond("expand-evidence", llmclient.RespondFunc(func(user string) any {
		var in struct {
			Seed artifact.EvidenceSeed `json:"seed"`
		}
		_ = json.Unmarshal(inputJSON(user), &in)
		return artifact.EvidenceItem{
			ID: in.Seed.ID, Kind: in.Seed.Kind, Title: "Item " + in.Seed.ID,
			Description: in.Seed.Hint, CollectedAt: "2026-03-01T23:00:00Z",
			CustodyChain: []string{"Officer Reed", "Lab Tech Moss"},
		}
	}))
	fake.Respond("design", rookieDesign())
	fake.Respond("generate-document", llmclient.RespondFunc(func(user string) any {
		var in struct {
			Spec artifact.DocumentSpec `json:"spec"`
		}
		_ = json.Unmarshal(inputJSON(user), &in)
		body := "Routine findings."
		if in.Spec.DocID == "doc_001" {
			body = "The victim was found at 9pm near the docks."
		}
		return artifact.CaseDocument{
			DocID: in.Spec.DocID, Type: in.Spec.Type, Title: in.Spec.Title,
			CreatedAt: "2026-03-02T08:00:00Z",
			Sections:  []artifact.DocumentSection{{Name: "summary", Body: body}},
			References: []string{"ev_001"},
		}
	}))
	fake.Respond("generate-media", llmclient.RespondFunc(func(user string) any {
		var in struct {
			Spec artifact.MediaSpec `json:"spec"`
		}
		_ = json.Unmarshal(inputJSON(user), &in)
		return artifact.CaseMedia{
			EvidenceID: in.Spec.EvidenceID, Kind: in.Spec.Kind,
			Caption: in.Spec.Caption, Description: "A shattered pane.",
			CapturedAt: "2026-03-01T23:30:00Z",
		}
	}))
	fake.Respond("redteam-global", llmclient.RespondFunc(func(user string) any {
		if strings.Contains(user, "9pm") {
			return artifact.GlobalAnalysis{
				Issues: []artifact.MacroIssue{{
					Category: artifact.IssueChronologicalGap, Severity: artifact.SeverityHigh,
					Description: "doc_001 places the discovery before the crime",
					Areas:       []string{"doc_001"},
				}},
				RequiresDetailedAnalysis: true,
				Assessment:               "one timeline defect",
			}
		}
		return artifact.GlobalAnalysis{Assessment: "consistent"}
	}))
	fake.Respond("redteam-focused", llmclient.RespondFunc(func(user string) any {
		return artifact.FocusedAnalysis{
			Area: "doc_001",
			Issues: []artifact.PreciseIssue{{
				DocID: "doc_001", Section: "summary", Severity: artifact.SeverityHigh,
				Description: "discovery time contradicts the timeline",
				Fix: artifact.IssueFix{
					Action: artifact.FixReplaceText, Section: "summary",
					OldText: "9pm", NewText: "10pm",
				},
			}},
			Assessment: "one fix",
		}
	}))
	return fake
}

func newTestOrchestrator(t *testing.T, fake *llmclient.FakeClient) *Orchestrator {
	t.Helper()
	cache, err := redteam.NewCache(32)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	storage, err := packager.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return &Orchestrator{
		Store:    casectx.NewStore(casectx.NewMemoryBackend()),
		LLM:      fake,
		Profiles: profile.DefaultTable(),
		Analyzer: redteam.New(fake, cache),
		Packager: packager.New(storage),
		Renderer: packager.StubRenderer{},
	}
}

func TestRunFullPipeline(t *testing.T) {
	fake := newPipelineFake()
	o := newTestOrchestrator(t, fake)

	var events []Event
	o.OnEvent = func(ev Event) { events = append(events, ev) }

	manifest, err := o.Run(context.Background(), artifact.GenerationRequest{
		CaseID: "case_e2e", Difficulty: "rookie", Timezone: "UTC", GenerateImages: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if manifest.CaseID != "case_e2e" {
		t.Fatalf("manifest case id %q", manifest.CaseID)
	}
	if len(manifest.Entries) != 7 { // 6 documents + 1 media
		t.Fatalf("expected 7 manifest entries, got %d", len(manifest.Entries))
	}
	if len(manifest.Visibility.GatedVisible) != 1 || manifest.Visibility.GatedVisible[0] != "doc_006" {
		t.Fatalf("gated partition wrong: %+v", manifest.Visibility)
	}

	ctx := context.Background()
	var st Status
	if err := o.Store.Load(ctx, "case_e2e", casectx.PathStatus, &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateCompleted {
		t.Fatalf("state = %q", st.State)
	}
	for _, step := range []string{StepPlan, StepExpand, StepDesign, StepGenerateDocs, StepGenerateMedia, StepNormalize, StepPackage} {
		if !st.completed(step) {
			t.Fatalf("step %s not checkpointed: %v", step, st.CompletedSteps)
		}
	}

	// Rookie bounds hold on stored content.
	suspects, err := o.Store.ListUnder(ctx, "case_e2e", casectx.PathPlanSuspects)
	if err != nil {
		t.Fatalf("list suspects: %v", err)
	}
	if n := len(suspects); n < 2 || n > 3 {
		t.Fatalf("rookie suspect count %d outside [2,3]", n)
	}
	docs, err := o.Store.ListUnder(ctx, "case_e2e", casectx.PathGenerateDocs)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if n := len(docs); n < 6 || n > 8 {
		t.Fatalf("rookie document count %d outside [6,8]", n)
	}

	if len(events) == 0 {
		t.Fatalf("no events emitted")
	}
}

func TestMediaGenerationSkippedWhenImagesDisabled(t *testing.T) {
	fake := newPipelineFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	// The rookie design carries a media spec; with images disabled the media
	// stage must not reach the gateway at all.
	manifest, err := o.Run(ctx, artifact.GenerationRequest{
		CaseID: "case_nomedia", Difficulty: "rookie", Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := fake.Calls("generate-media"); n != 0 {
		t.Fatalf("media stage called %d times with images disabled", n)
	}

	media, err := o.Store.ListUnder(ctx, "case_nomedia", casectx.PathGenerateMedia)
	if err != nil {
		t.Fatalf("list media: %v", err)
	}
	if len(media) != 0 {
		t.Fatalf("media stored despite disabled flag: %v", media)
	}
	if len(manifest.Entries) != 6 { // documents only
		t.Fatalf("expected 6 manifest entries, got %d", len(manifest.Entries))
	}

	var st Status
	if err := o.Store.Load(ctx, "case_nomedia", casectx.PathStatus, &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.completed(StepGenerateMedia) {
		t.Fatalf("media step must still checkpoint when skipped")
	}
}

func TestFixLoopRepairsFlaggedDocument(t *testing.T) {
	fake := newPipelineFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if _, err := o.Run(ctx, artifact.GenerationRequest{CaseID: "case_fix", Difficulty: "rookie"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var bundle artifact.NormalizedCaseBundle
	if err := o.Store.Load(ctx, "case_fix", casectx.PathBundle, &bundle); err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if bundle.Metadata.FixIterations != 1 {
		t.Fatalf("fix iterations = %d, want 1", bundle.Metadata.FixIterations)
	}
	if len(bundle.Metadata.ResidualIssues) != 0 {
		t.Fatalf("expected no residual issues, got %v", bundle.Metadata.ResidualIssues)
	}
	body := bundle.DocumentByID("doc_001").Sections[0].Body
	if !strings.Contains(body, "10pm") || strings.Contains(body, "9pm") {
		t.Fatalf("fix not applied: %q", body)
	}
	if bundle.Version < 2 {
		t.Fatalf("bundle version %d, want re-normalized copy", bundle.Version)
	}
}

func TestResidualIssuesReflectFinalBundle(t *testing.T) {
	fake := newPipelineFake()
	o := newTestOrchestrator(t, fake)
	o.MaxFixIterations = 1
	ctx := context.Background()

	// The cap expires right after the fix batch that repairs the defect; the
	// recorded residuals must describe the repaired bundle, not the one the
	// loop's last analysis saw.
	if _, err := o.Run(ctx, artifact.GenerationRequest{CaseID: "case_cap", Difficulty: "rookie"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var bundle artifact.NormalizedCaseBundle
	if err := o.Store.Load(ctx, "case_cap", casectx.PathBundle, &bundle); err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if bundle.Metadata.FixIterations != 1 {
		t.Fatalf("fix iterations = %d, want 1", bundle.Metadata.FixIterations)
	}
	body := bundle.DocumentByID("doc_001").Sections[0].Body
	if !strings.Contains(body, "10pm") {
		t.Fatalf("fix not applied before cap: %q", body)
	}
	if len(bundle.Metadata.ResidualIssues) != 0 {
		t.Fatalf("stale residuals recorded for a clean bundle: %v", bundle.Metadata.ResidualIssues)
	}
}

func TestRunResumesAfterFailedStep(t *testing.T) {
	fake := newPipelineFake()
	boom := errors.New("gateway down")
	fake.FailFirst("design", boom, boom, boom)
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	req := artifact.GenerationRequest{CaseID: "case_resume", Difficulty: "rookie"}
	if _, err := o.Run(ctx, req); err == nil {
		t.Fatalf("expected first run to fail at design")
	}
	planCalls := fake.Calls("plan")
	if planCalls != 1 {
		t.Fatalf("plan calls = %d", planCalls)
	}

	// Second run resumes: plan and expand are checkpointed, design retries.
	if _, err := o.Run(ctx, req); err != nil {
		t.Fatalf("resume run: %v", err)
	}
	if fake.Calls("plan") != planCalls {
		t.Fatalf("plan re-ran on resume: %d calls", fake.Calls("plan"))
	}

	var st Status
	if err := o.Store.Load(ctx, "case_resume", casectx.PathStatus, &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateCompleted {
		t.Fatalf("state = %q after resume", st.State)
	}
}

func TestFanOutCollectsPerTaskFailures(t *testing.T) {
	results := fanOut(context.Background(), 2, []string{"a", "b", "c"}, func(_ context.Context, id string) error {
		if id == "b" {
			return errors.New("task b broke")
		}
		return nil
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	err := batchErr("test batch", results)
	if err == nil || !strings.Contains(err.Error(), "1/3") {
		t.Fatalf("unexpected batch error %v", err)
	}
	if batchErr("ok batch", results[:1]) != nil {
		t.Fatalf("clean batch must return nil")
	}
}
