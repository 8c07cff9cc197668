// Package packager assembles the final hand-off: per-artifact JSON blobs
// under deterministic paths, the normalized bundle, the manifest with content
// hashes, and the visibility partition the game-facing API consumes.
package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"caseforge/internal/artifact"
	"caseforge/internal/util/jsonutil"
)

// Packager writes a finished case to storage.
type Packager struct {
	Storage Storage
}

func New(storage Storage) *Packager {
	return &Packager{Storage: storage}
}

// Package writes every artifact blob plus bundle and manifest. Render
// results, when present, override the hash/size of the matching entry.
func (p *Packager) Package(ctx context.Context, bundle artifact.NormalizedCaseBundle, renders []artifact.RenderResult) (artifact.CaseManifest, error) {
	rendered := make(map[string]artifact.RenderResult, len(renders))
	for _, r := range renders {
		rendered[r.ID] = r
	}

	manifest := artifact.CaseManifest{CaseID: bundle.CaseID}

	for _, doc := range bundle.Documents {
		path := fmt.Sprintf("%s/documents/%s.json", bundle.CaseID, doc.DocID)
		entry, err := p.writeEntry(ctx, path, doc.DocID, "document", doc.Gating, doc, rendered)
		if err != nil {
			return artifact.CaseManifest{}, err
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	for _, m := range bundle.Media {
		path := fmt.Sprintf("%s/media/%s.json", bundle.CaseID, m.EvidenceID)
		entry, err := p.writeEntry(ctx, path, m.EvidenceID, "media", m.Gating, m, rendered)
		if err != nil {
			return artifact.CaseManifest{}, err
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	manifest.Visibility = partition(bundle)

	bundleBlob, err := jsonutil.MarshalNoEscape(bundle)
	if err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("packager: marshal bundle: %w", err)
	}
	if err := p.Storage.Put(ctx, bundle.CaseID+"/bundle.json", bundleBlob); err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("packager: write bundle: %w", err)
	}

	manifestBlob, err := jsonutil.MarshalNoEscape(manifest)
	if err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("packager: marshal manifest: %w", err)
	}
	if err := p.Storage.Put(ctx, bundle.CaseID+"/manifest.json", manifestBlob); err != nil {
		return artifact.CaseManifest{}, fmt.Errorf("packager: write manifest: %w", err)
	}
	return manifest, nil
}

func (p *Packager) writeEntry(ctx context.Context, path, id, typ string, gating *artifact.GatingRule, v any, rendered map[string]artifact.RenderResult) (artifact.ManifestEntry, error) {
	blob, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		return artifact.ManifestEntry{}, fmt.Errorf("packager: marshal %s: %w", id, err)
	}
	if err := p.Storage.Put(ctx, path, blob); err != nil {
		return artifact.ManifestEntry{}, fmt.Errorf("packager: write %s: %w", id, err)
	}
	sum := sha256.Sum256(blob)
	entry := artifact.ManifestEntry{
		ID:           id,
		RelativePath: path,
		Type:         typ,
		Gated:        gating != nil && len(gating.RequiredIDs) > 0,
		Hash:         hex.EncodeToString(sum[:]),
		SizeBytes:    int64(len(blob)),
	}
	if r, ok := rendered[id]; ok {
		entry.RelativePath = r.Path
		entry.Hash = r.Hash
		entry.SizeBytes = r.SizeBytes
	}
	return entry, nil
}

// partition splits artifact ids by what is visible before any unlock: gated
// documents stay listed (title visible) while gated media is hidden entirely
// until unlocked.
func partition(bundle artifact.NormalizedCaseBundle) artifact.VisibilityPartition {
	var part artifact.VisibilityPartition
	for _, d := range bundle.Documents {
		if d.Gating != nil && len(d.Gating.RequiredIDs) > 0 {
			part.GatedVisible = append(part.GatedVisible, d.DocID)
		} else {
			part.AlwaysVisible = append(part.AlwaysVisible, d.DocID)
		}
	}
	for _, m := range bundle.Media {
		if m.Gating != nil && len(m.Gating.RequiredIDs) > 0 {
			part.HiddenUntilUnlocked = append(part.HiddenUntilUnlocked, m.EvidenceID)
		} else {
			part.AlwaysVisible = append(part.AlwaysVisible, m.EvidenceID)
		}
	}
	sort.Strings(part.AlwaysVisible)
	sort.Strings(part.GatedVisible)
	sort.Strings(part.HiddenUntilUnlocked)
	return part
}
