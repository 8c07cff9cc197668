package stage

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/llmclient"
	"caseforge/internal/profile"
)

func testEnv(t *testing.T, fake *llmclient.FakeClient) *Env {
	t.Helper()
	table := profile.DefaultTable()
	rookie, err := table.Get("rookie")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return &Env{
		LLM:      fake,
		Store:    casectx.NewStore(casectx.NewMemoryBackend()),
		Profile:  rookie,
		Timezone: "UTC",
		Rand:     rand.New(rand.NewSource(1)),
	}
}

func planPayload(suspects, seeds int) artifact.CasePlan {
	p := artifact.CasePlan{
		Title:        "The Dockside Affair",
		Setting:      "a harbor town",
		CrimeSummary: "a warehouse manager found dead",
		VictimName:   "M. Keller",
		CrimeTime:    "2026-03-01T22:00:00Z",
		CulpritID:    "sus_001",
		TimelineBeats: []artifact.TimelineBeat{
			{At: "2026-03-01T21:30:00Z", Description: "victim last seen"},
		},
	}
	for i := 1; i <= suspects; i++ {
		p.SuspectIDs = append(p.SuspectIDs, suspectID(i))
	}
	for i := 1; i <= seeds; i++ {
		p.EvidenceSeeds = append(p.EvidenceSeeds, artifact.EvidenceSeed{
			ID: evidenceID(i), Kind: "physical", Hint: "points at the culprit",
		})
	}
	return p
}

func suspectID(i int) string  { return []string{"", "sus_001", "sus_002", "sus_003", "sus_004", "sus_005"}[i] }
func evidenceID(i int) string { return []string{"", "ev_001", "ev_002", "ev_003", "ev_004", "ev_005"}[i] }

// inputJSON extracts the JSON payload from a rendered user prompt.
func inputJSON(user string) []byte {
	_, after, ok := strings.Cut(user, "[INPUT]\n")
	if !ok {
		return []byte(user)
	}
	return []byte(after)
}

func TestPlanRun(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("plan", planPayload(3, 4))
	env := testEnv(t, fake)
	ctx := context.Background()

	plan, err := (&Plan{Env: env}).Run(ctx, artifact.GenerationRequest{CaseID: "case_t", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.SuspectIDs) != 3 {
		t.Fatalf("suspects = %d", len(plan.SuspectIDs))
	}

	var stored artifact.CasePlan
	if err := env.Store.Load(ctx, "case_t", casectx.PathPlanCore, &stored); err != nil {
		t.Fatalf("plan not stored: %v", err)
	}
	if stored.Title != plan.Title {
		t.Fatalf("stored plan differs: %q", stored.Title)
	}
}

func TestPlanRejectsSuspectCountOutsideProfile(t *testing.T) {
	// Rookie allows 2-3 suspects; five must be rejected.
	fake := llmclient.NewFakeClient().Respond("plan", planPayload(5, 4))
	env := testEnv(t, fake)

	_, err := (&Plan{Env: env}).Run(context.Background(), artifact.GenerationRequest{CaseID: "case_t"})
	if err == nil {
		t.Fatalf("expected range violation error")
	}
	var se *Error
	if !errors.As(err, &se) || se.Stage != "plan" {
		t.Fatalf("expected plan stage error, got %v", err)
	}
}

func TestCallStructuredRetriesOnMissingRequiredKey(t *testing.T) {
	// Payload parses but misses culprit_id, so every attempt fails.
	bad := map[string]any{
		"title": "x", "crime_summary": "y",
		"suspect_ids": []string{"sus_001", "sus_002"}, "evidence_seeds": []any{},
	}
	fake := llmclient.NewFakeClient().Respond("plan", bad)
	env := testEnv(t, fake)

	_, err := (&Plan{Env: env}).Run(context.Background(), artifact.GenerationRequest{CaseID: "case_t"})
	if err == nil {
		t.Fatalf("expected failure for malformed output")
	}
	if fake.Calls("plan") != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, fake.Calls("plan"))
	}
	if !strings.Contains(err.Error(), "culprit_id") {
		t.Fatalf("error should name the missing key: %v", err)
	}
}

func TestCallStructuredRecoversAfterTransientError(t *testing.T) {
	fake := llmclient.NewFakeClient().
		FailFirst("plan", errors.New("429 rate limited")).
		Respond("plan", planPayload(2, 4))
	env := testEnv(t, fake)

	if _, err := (&Plan{Env: env}).Run(context.Background(), artifact.GenerationRequest{CaseID: "case_t"}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if fake.Calls("plan") != 2 {
		t.Fatalf("expected 2 attempts, got %d", fake.Calls("plan"))
	}
}

func TestExpandSuspectAnswersRequestedID(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("expand-suspect", llmclient.RespondFunc(func(user string) any {
		var in struct {
			SuspectID string `json:"suspect_id"`
		}
		_ = json.Unmarshal(inputJSON(user), &in)
		return artifact.Suspect{
			ID: in.SuspectID, Name: "A. Person", Occupation: "clerk",
			Motive: "money", Alibi: "at the tavern until 11pm",
			IsCulprit: in.SuspectID == "sus_001",
		}
	}))
	env := testEnv(t, fake)
	ctx := context.Background()
	if err := env.Store.Save(ctx, "case_t", casectx.PathPlanCore, planPayload(2, 4)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	ex := &Expand{Env: env}
	for _, id := range []string{"sus_001", "sus_002"} {
		sus, err := ex.Suspect(ctx, "case_t", id)
		if err != nil {
			t.Fatalf("expand %s: %v", id, err)
		}
		if sus.ID != id {
			t.Fatalf("expanded id %q, want %q", sus.ID, id)
		}
	}

	paths, err := env.Store.ListUnder(ctx, "case_t", casectx.PathPlanSuspects)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 stored suspects, got %v", paths)
	}
}

func TestExpandSuspectRejectsWrongID(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("expand-suspect", artifact.Suspect{
		ID: "sus_999", Name: "Wrong", Occupation: "n/a", Motive: "n/a", Alibi: "n/a",
	})
	env := testEnv(t, fake)
	ctx := context.Background()
	if err := env.Store.Save(ctx, "case_t", casectx.PathPlanCore, planPayload(2, 4)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	if _, err := (&Expand{Env: env}).Suspect(ctx, "case_t", "sus_001"); err == nil {
		t.Fatalf("expected id mismatch error")
	}
}

func TestGenerateDocumentCarriesGatingFromSpec(t *testing.T) {
	spec := artifact.DocumentSpec{
		DocID: "doc_001", Type: "forensics", Title: "Lab Results",
		RequiredSections: []string{"findings"}, TargetWords: 200,
		Gating: &artifact.GatingRule{Action: "examine", RequiredIDs: []string{"ev_001"}},
	}
	fake := llmclient.NewFakeClient().Respond("generate-document", artifact.CaseDocument{
		DocID: "doc_001", Type: "forensics", Title: "Lab Results",
		CreatedAt: "2026-03-02T09:00:00Z",
		Sections:  []artifact.DocumentSection{{Name: "findings", Body: "trace residue"}},
	})
	env := testEnv(t, fake)
	ctx := context.Background()
	if err := env.Store.Save(ctx, "case_t", casectx.PathPlanCore, planPayload(2, 4)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	doc, err := (&Generate{Env: env}).Document(ctx, "case_t", spec)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Gating == nil || doc.Gating.RequiredIDs[0] != "ev_001" {
		t.Fatalf("gating not carried from spec: %+v", doc.Gating)
	}

	var stored artifact.CaseDocument
	if err := env.Store.Load(ctx, "case_t", "generate/documents/doc_001", &stored); err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if stored.Gating == nil {
		t.Fatalf("stored document lost its gating rule")
	}
}

func TestPromptSpecRendering(t *testing.T) {
	s := promptSpec{
		Purpose:     "do the thing",
		Constraints: []string{"first", "second"},
	}.System()
	for _, want := range []string{"[PURPOSE]", "[CONSTRAINTS]", "- first", "[OUTPUT_FORMAT]"} {
		if !strings.Contains(s, want) {
			t.Fatalf("rendered prompt missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "[RULES]") {
		t.Fatalf("empty sections must be omitted:\n%s", s)
	}
}
