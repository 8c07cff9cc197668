package orchestrator

import (
	"context"
	"time"

	"caseforge/internal/casectx"
)

// Pipeline step names, in execution order.
const (
	StepPlan          = "plan"
	StepExpand        = "expand"
	StepDesign        = "design"
	StepGenerateDocs  = "generate-documents"
	StepGenerateMedia = "generate-media"
	StepRender        = "render"
	StepNormalize     = "normalize"
	StepRuleValidate  = "rule-validate"
	StepRedTeam       = "redteam"
	StepFix           = "fix"
	StepPackage       = "package"
)

// Terminal pipeline states.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Status is the durable checkpoint for one pipeline run. It is rewritten to
// the context store after every step, which is what makes the orchestrator
// resumable: completed steps are skipped and every stage write is an
// idempotent overwrite.
type Status struct {
	CaseID         string            `json:"case_id"`
	PipelineID     string            `json:"pipeline_id"`
	State          string            `json:"state"`
	Difficulty     string            `json:"difficulty"`
	CompletedSteps []string          `json:"completed_steps"`
	CurrentStep    string            `json:"current_step,omitempty"`
	StepDurations  map[string]string `json:"step_durations,omitempty"`
	FixIterations  int               `json:"fix_iterations"`
	Error          string            `json:"error,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (s *Status) completed(step string) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

func (s *Status) markCompleted(step string, took time.Duration) {
	if !s.completed(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
	if s.StepDurations == nil {
		s.StepDurations = make(map[string]string)
	}
	s.StepDurations[step] = took.Round(time.Millisecond).String()
	s.CurrentStep = ""
	s.UpdatedAt = time.Now()
}

func (o *Orchestrator) loadStatus(ctx context.Context, caseID string) (*Status, bool) {
	var st Status
	if err := o.Store.Load(ctx, caseID, casectx.PathStatus, &st); err != nil {
		return nil, false
	}
	return &st, true
}

func (o *Orchestrator) saveStatus(ctx context.Context, st *Status) {
	st.UpdatedAt = time.Now()
	// Status writes are best-effort; a failed checkpoint must not fail the
	// pipeline, it only costs resume granularity.
	if err := o.Store.Save(ctx, st.CaseID, casectx.PathStatus, st); err != nil {
		o.logf("status checkpoint failed for %s: %v", st.CaseID, err)
	}
}
