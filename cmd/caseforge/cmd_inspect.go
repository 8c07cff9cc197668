package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/config"
)

var inspectFlags struct {
	caseID   string
	path     string
	manifest bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect stored artifacts for a case",
	Long: `Without --path, lists every artifact path stored for the case. With --path,
prints that artifact's JSON to stdout. With --manifest, prints the packaged
manifest's visibility partition and gating summary.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFlags.caseID, "case-id", "", "case id (required)")
	inspectCmd.Flags().StringVar(&inspectFlags.path, "path", "", "artifact path, e.g. plan/core or generate/documents/doc_001")
	inspectCmd.Flags().BoolVar(&inspectFlags.manifest, "manifest", false, "summarize the packaged manifest")
	_ = inspectCmd.MarkFlagRequired("case-id")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if inspectFlags.manifest {
		return printManifestSummary(ctx, store)
	}
	if inspectFlags.path == "" {
		paths, err := store.List(ctx, inspectFlags.caseID)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no artifacts stored for case %s", inspectFlags.caseID)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	}

	var raw json.RawMessage
	if err := store.Load(ctx, inspectFlags.caseID, inspectFlags.path, &raw); err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

func printManifestSummary(ctx context.Context, store *casectx.Store) error {
	var m artifact.CaseManifest
	if err := store.Load(ctx, inspectFlags.caseID, casectx.PathManifest, &m); err != nil {
		return fmt.Errorf("case %s has no packaged manifest: %w", inspectFlags.caseID, err)
	}

	gated := 0
	for _, e := range m.Entries {
		if e.Gated {
			gated++
		}
	}
	fmt.Printf("case %s: %d artifacts, %d gated\n", m.CaseID, len(m.Entries), gated)
	fmt.Printf("  always visible:        %s\n", strings.Join(m.Visibility.AlwaysVisible, ", "))
	fmt.Printf("  gated visible:         %s\n", strings.Join(m.Visibility.GatedVisible, ", "))
	fmt.Printf("  hidden until unlocked: %s\n", strings.Join(m.Visibility.HiddenUntilUnlocked, ", "))

	for _, e := range m.Entries {
		marker := " "
		if e.Gated {
			marker = "G"
		}
		fmt.Printf("  [%s] %-12s %-10s %8d bytes  %s\n", marker, e.ID, e.Type, e.SizeBytes, e.RelativePath)
	}
	return nil
}
