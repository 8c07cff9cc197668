package packager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"caseforge/internal/artifact"
)

// memStorage collects written keys in memory for assertions.
type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (s *memStorage) Put(_ context.Context, key string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), content...)
	return nil
}

func packagedBundle() artifact.NormalizedCaseBundle {
	gate := &artifact.GatingRule{Action: "examine", RequiredIDs: []string{"ev_001"}}
	return artifact.NormalizedCaseBundle{
		CaseID:  "case_p",
		Version: 1,
		Documents: []artifact.CaseDocument{
			{DocID: "doc_001", Type: "police_report", Title: "Report"},
			{DocID: "doc_002", Type: "forensics", Title: "Lab Results", Gating: gate},
		},
		Media: []artifact.CaseMedia{
			{EvidenceID: "ev_001", Kind: "photo", Caption: "Window"},
			{EvidenceID: "ev_002", Kind: "photo", Caption: "Ledger", Gating: gate},
		},
	}
}

func TestPackageWritesAllFiles(t *testing.T) {
	storage := newMemStorage()
	manifest, err := New(storage).Package(context.Background(), packagedBundle(), nil)
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	for _, key := range []string{
		"case_p/documents/doc_001.json",
		"case_p/documents/doc_002.json",
		"case_p/media/ev_001.json",
		"case_p/media/ev_002.json",
		"case_p/bundle.json",
		"case_p/manifest.json",
	} {
		if _, ok := storage.blobs[key]; !ok {
			t.Fatalf("missing stored key %q (have %v)", key, keys(storage))
		}
	}

	if len(manifest.Entries) != 4 {
		t.Fatalf("expected 4 manifest entries, got %d", len(manifest.Entries))
	}
	for _, e := range manifest.Entries {
		if e.Hash == "" || e.SizeBytes == 0 {
			t.Fatalf("entry %s missing hash or size: %+v", e.ID, e)
		}
	}
}

func TestVisibilityPartition(t *testing.T) {
	manifest, err := New(newMemStorage()).Package(context.Background(), packagedBundle(), nil)
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	v := manifest.Visibility
	if len(v.AlwaysVisible) != 2 || v.AlwaysVisible[0] != "doc_001" || v.AlwaysVisible[1] != "ev_001" {
		t.Fatalf("always visible = %v", v.AlwaysVisible)
	}
	// Gated documents keep their title listed; gated media stays hidden.
	if len(v.GatedVisible) != 1 || v.GatedVisible[0] != "doc_002" {
		t.Fatalf("gated visible = %v", v.GatedVisible)
	}
	if len(v.HiddenUntilUnlocked) != 1 || v.HiddenUntilUnlocked[0] != "ev_002" {
		t.Fatalf("hidden until unlocked = %v", v.HiddenUntilUnlocked)
	}
}

func TestRenderResultsOverrideEntries(t *testing.T) {
	renders := []artifact.RenderResult{
		{ID: "doc_001", Path: "case_p/rendered/doc_001.pdf", SizeBytes: 4096, Hash: "abc123"},
	}
	manifest, err := New(newMemStorage()).Package(context.Background(), packagedBundle(), renders)
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	var entry artifact.ManifestEntry
	for _, e := range manifest.Entries {
		if e.ID == "doc_001" {
			entry = e
		}
	}
	if entry.RelativePath != "case_p/rendered/doc_001.pdf" || entry.Hash != "abc123" || entry.SizeBytes != 4096 {
		t.Fatalf("render result not applied: %+v", entry)
	}
}

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	storage, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	if err := storage.Put(context.Background(), "case_p/documents/doc_001.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(root, "case_p", "documents", "doc_001.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != `{"ok":true}` {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestStubRendererIsDeterministic(t *testing.T) {
	doc := artifact.CaseDocument{DocID: "doc_001", Title: "Report"}
	r1, err := StubRenderer{}.RenderDocument(context.Background(), "case_p", doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	r2, _ := StubRenderer{}.RenderDocument(context.Background(), "case_p", doc)
	if r1.Hash != r2.Hash || r1.ID != "doc_001" {
		t.Fatalf("stub render not deterministic: %+v vs %+v", r1, r2)
	}
}

func keys(s *memStorage) []string {
	out := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		out = append(out, k)
	}
	return out
}
