// Package stage implements the content-producing pipeline stages: plan,
// expand, design, generate. Each stage builds a minimal context snapshot,
// calls the text-generation gateway, validates the returned shape, and writes
// the result back under a stable context path.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"

	"caseforge/internal/casectx"
	"caseforge/internal/llmclient"
	"caseforge/internal/profile"
	"caseforge/internal/util/jsonutil"
)

// maxAttempts bounds retries per generation call. Exhausting it is fatal to
// the stage: content stages cannot continue with malformed output.
const maxAttempts = 3

// Env is the shared environment passed to every stage producer.
type Env struct {
	LLM      llmclient.Client
	Store    *casectx.Store
	Profile  profile.Profile
	Timezone string
	Rand     *rand.Rand
}

// Error ties a failure to the stage that produced it.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error { return &Error{Stage: stage, Err: err} }

// callStructured invokes the gateway with a schema, retrying transient and
// malformed-output failures up to maxAttempts, then validates required keys
// and decodes into out.
func callStructured(ctx context.Context, env *Env, caseID, stage, system, user string, schema json.RawMessage, required []string, out any) error {
	ctx = llmclient.WithStage(ctx, stage)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := env.LLM.GenerateStructured(ctx, caseID, system, user, schema)
		if err == nil {
			err = decodeChecked(raw, required, out)
			if err == nil {
				return nil
			}
		}
		lastErr = err
		log.Printf("stage %s: attempt %d/%d failed: %v", stage, attempt, maxAttempts, err)
		if ctx.Err() != nil {
			return stageErr(stage, ctx.Err())
		}
	}
	return stageErr(stage, fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr))
}

// decodeChecked verifies required top-level keys are present, then decodes.
func decodeChecked(raw json.RawMessage, required []string, out any) error {
	var probe map[string]json.RawMessage
	if err := jsonutil.UnmarshalRaw(raw, &probe); err != nil {
		return fmt.Errorf("malformed output: %w", err)
	}
	for _, k := range required {
		if _, ok := probe[k]; !ok {
			return fmt.Errorf("malformed output: missing required key %q", k)
		}
	}
	return jsonutil.UnmarshalRaw(raw, out)
}
