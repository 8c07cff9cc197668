package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caseforge/internal/artifact"
	"caseforge/internal/config"
)

var generateFlags struct {
	caseID     string
	difficulty string
	timezone   string
	images     bool
	render     bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full pipeline once and print the case manifest",
	Long: `Runs plan through package for a single case. With --case-id pointing at a
previously interrupted run, the pipeline resumes from its last completed step
instead of starting over.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateFlags.caseID, "case-id", "", "case id (resumes an interrupted run; generated when empty)")
	generateCmd.Flags().StringVar(&generateFlags.difficulty, "difficulty", "", "difficulty profile (rookie, detective, inspector, commander; random when empty)")
	generateCmd.Flags().StringVar(&generateFlags.timezone, "timezone", "", "IANA timezone for case timestamps")
	generateCmd.Flags().BoolVar(&generateFlags.images, "images", false, "generate media artifacts for photo/audio/video evidence")
	generateCmd.Flags().BoolVar(&generateFlags.render, "render", false, "render generated artifacts to files before packaging")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if generateFlags.timezone == "" {
		generateFlags.timezone = cfg.Timezone
	}

	ctx := cmd.Context()
	o, _, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req := artifact.GenerationRequest{
		CaseID:         generateFlags.caseID,
		Difficulty:     generateFlags.difficulty,
		Timezone:       generateFlags.timezone,
		GenerateImages: generateFlags.images,
		RenderFiles:    generateFlags.render,
	}
	manifest, err := o.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}
