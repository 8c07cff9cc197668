// Package orchestrator sequences the generation pipeline for one case:
// plan, expand, design, generate, render, normalize, the analyze-fix loop,
// and packaging. One orchestrator instance advances one case at a time;
// independent instances share nothing and may run concurrently.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/llmclient"
	"caseforge/internal/packager"
	"caseforge/internal/profile"
	"caseforge/internal/redteam"
	"caseforge/internal/stage"
)

// Event is one progress notification, consumed by the serve-mode push
// channel and by logs.
type Event struct {
	CaseID  string    `json:"case_id"`
	Step    string    `json:"step"`
	State   string    `json:"state"` // started, completed, failed
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Orchestrator wires the pipeline components for one case at a time.
type Orchestrator struct {
	Store    *casectx.Store
	LLM      llmclient.Client
	Profiles *profile.Table
	Analyzer *redteam.Analyzer
	Packager *packager.Packager
	Renderer packager.Renderer

	// Concurrency bounds fan-out batches; MaxFixIterations caps the
	// analyze-fix loop. Zero values get defaults.
	Concurrency      int
	MaxFixIterations int

	OnEvent func(Event)

	mu sync.Mutex // guards status mutation from parallel step groups
}

const defaultFixIterations = 3

func (o *Orchestrator) logf(format string, args ...any) {
	log.Printf("orchestrator: "+format, args...)
}

func (o *Orchestrator) emit(caseID, step, state, msg string) {
	if o.OnEvent != nil {
		o.OnEvent(Event{CaseID: caseID, Step: step, State: state, Message: msg, At: time.Now()})
	}
}

// step runs fn once, checkpointing completion. Already-completed steps are
// skipped, which is what makes a restarted run resume instead of repeat.
func (o *Orchestrator) step(ctx context.Context, st *Status, name string, fn func() error) error {
	o.mu.Lock()
	if st.completed(name) {
		o.mu.Unlock()
		o.logf("%s: %s already completed, skipping", st.CaseID, name)
		return nil
	}
	st.CurrentStep = name
	o.saveStatus(ctx, st)
	o.mu.Unlock()

	o.emit(st.CaseID, name, "started", "")
	start := time.Now()
	if err := fn(); err != nil {
		o.mu.Lock()
		st.State = StateFailed
		st.Error = fmt.Sprintf("%s: %v", name, err)
		o.saveStatus(ctx, st)
		o.mu.Unlock()
		o.emit(st.CaseID, name, "failed", err.Error())
		return err
	}
	o.mu.Lock()
	st.markCompleted(name, time.Since(start))
	o.saveStatus(ctx, st)
	o.mu.Unlock()
	o.emit(st.CaseID, name, "completed", "")
	return nil
}

// Run executes the full pipeline and returns the packaged manifest.
func (o *Orchestrator) Run(ctx context.Context, req artifact.GenerationRequest) (artifact.CaseManifest, error) {
	if req.CaseID == "" {
		req.CaseID = "case_" + uuid.NewString()
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	maxIter := o.MaxFixIterations
	if maxIter <= 0 {
		maxIter = defaultFixIterations
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Resume a prior run when a checkpoint exists, otherwise start fresh.
	st, resumed := o.loadStatus(ctx, req.CaseID)
	if !resumed || st.State == StateCompleted {
		st = &Status{
			CaseID:     req.CaseID,
			PipelineID: uuid.NewString(),
			State:      StateRunning,
			StartedAt:  time.Now(),
		}
	} else {
		o.logf("%s: resuming pipeline %s (%d steps done)", req.CaseID, st.PipelineID, len(st.CompletedSteps))
		st.State = StateRunning
		st.Error = ""
	}

	var prof profile.Profile
	var err error
	if st.Difficulty != "" {
		prof, err = o.Profiles.Get(st.Difficulty)
	} else if req.Difficulty != "" {
		prof, err = o.Profiles.Get(req.Difficulty)
	} else {
		prof = o.Profiles.Random(rng)
	}
	if err != nil {
		return artifact.CaseManifest{}, err
	}
	st.Difficulty = prof.Name
	o.saveStatus(ctx, st)

	env := &stage.Env{
		LLM:      o.LLM,
		Store:    o.Store,
		Profile:  prof,
		Timezone: req.Timezone,
		Rand:     rng,
	}

	if err := o.runStages(ctx, st, env, req); err != nil {
		return artifact.CaseManifest{}, err
	}

	manifest, err := o.finish(ctx, st, req, maxIter)
	if err != nil {
		return artifact.CaseManifest{}, err
	}

	st.State = StateCompleted
	st.CurrentStep = ""
	o.saveStatus(ctx, st)
	o.emit(req.CaseID, StepPackage, "completed", "pipeline finished")
	return manifest, nil
}

// runStages drives plan through render.
func (o *Orchestrator) runStages(ctx context.Context, st *Status, env *stage.Env, req artifact.GenerationRequest) error {
	caseID := req.CaseID

	if err := o.step(ctx, st, StepPlan, func() error {
		_, err := (&stage.Plan{Env: env}).Run(ctx, req)
		return err
	}); err != nil {
		return err
	}

	// Expand fans out one task per suspect and per evidence seed.
	if err := o.step(ctx, st, StepExpand, func() error {
		var plan artifact.CasePlan
		if err := o.Store.Load(ctx, caseID, casectx.PathPlanCore, &plan); err != nil {
			return fmt.Errorf("plan/core unavailable: %w", err)
		}
		ex := &stage.Expand{Env: env}
		results := fanOut(ctx, o.Concurrency, plan.SuspectIDs, func(ctx context.Context, id string) error {
			_, err := ex.Suspect(ctx, caseID, id)
			return err
		})
		if err := batchErr("expand suspects", results); err != nil {
			return err
		}
		seeds := make(map[string]artifact.EvidenceSeed, len(plan.EvidenceSeeds))
		ids := make([]string, 0, len(plan.EvidenceSeeds))
		for _, s := range plan.EvidenceSeeds {
			seeds[s.ID] = s
			ids = append(ids, s.ID)
		}
		results = fanOut(ctx, o.Concurrency, ids, func(ctx context.Context, id string) error {
			_, err := ex.Evidence(ctx, caseID, seeds[id])
			return err
		})
		return batchErr("expand evidence", results)
	}); err != nil {
		return err
	}

	if err := o.step(ctx, st, StepDesign, func() error {
		_, err := (&stage.Design{Env: env}).Run(ctx, caseID)
		return err
	}); err != nil {
		return err
	}

	// Document and media generation are independent batches; run them in
	// parallel, each with its own fan-out and checkpoint.
	var design artifact.CaseDesign
	if err := o.Store.Load(ctx, caseID, casectx.PathDesign, &design); err != nil {
		return fmt.Errorf("design specs unavailable: %w", err)
	}
	gen := &stage.Generate{Env: env}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.step(gctx, st, StepGenerateDocs, func() error {
			specs := make(map[string]artifact.DocumentSpec, len(design.Documents))
			ids := make([]string, 0, len(design.Documents))
			for _, s := range design.Documents {
				specs[s.DocID] = s
				ids = append(ids, s.DocID)
			}
			results := fanOut(gctx, o.Concurrency, ids, func(ctx context.Context, id string) error {
				_, err := gen.Document(ctx, caseID, specs[id])
				return err
			})
			return batchErr("generate documents", results)
		})
	})
	g.Go(func() error {
		return o.step(gctx, st, StepGenerateMedia, func() error {
			if !req.GenerateImages {
				if len(design.Media) > 0 {
					o.logf("%s: skipping %d media specs (generate_images disabled)", caseID, len(design.Media))
				}
				return nil
			}
			specs := make(map[string]artifact.MediaSpec, len(design.Media))
			ids := make([]string, 0, len(design.Media))
			for _, s := range design.Media {
				specs[s.EvidenceID] = s
				ids = append(ids, s.EvidenceID)
			}
			results := fanOut(gctx, o.Concurrency, ids, func(ctx context.Context, id string) error {
				_, err := gen.Media(ctx, caseID, specs[id])
				return err
			})
			return batchErr("generate media", results)
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if req.RenderFiles {
		if err := o.step(ctx, st, StepRender, func() error {
			return o.renderAll(ctx, caseID)
		}); err != nil {
			return err
		}
	}
	return nil
}

// renderAll hands every generated artifact to the render back end and stores
// the reported results for the manifest.
func (o *Orchestrator) renderAll(ctx context.Context, caseID string) error {
	docs, media, err := o.collectGenerated(ctx, caseID)
	if err != nil {
		return err
	}
	var results []artifact.RenderResult
	for _, d := range docs {
		r, err := o.Renderer.RenderDocument(ctx, caseID, d)
		if err != nil {
			return fmt.Errorf("render document %s: %w", d.DocID, err)
		}
		results = append(results, r)
	}
	for _, m := range media {
		r, err := o.Renderer.RenderMedia(ctx, caseID, m)
		if err != nil {
			return fmt.Errorf("render media %s: %w", m.EvidenceID, err)
		}
		results = append(results, r)
	}
	return o.Store.Save(ctx, caseID, casectx.PathRenderResults, results)
}
