// Package redteam is the two-tier consistency analyzer: a global pass over
// the whole bundle that flags areas needing inspection, and a focused pass
// per flagged area that returns located, typed fixes. Both passes are
// content-hash cached, and both degrade to an explicit fallback analysis on
// malformed output so the fix loop always has something well-formed to act
// on.
package redteam

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"caseforge/internal/llmclient"
	"caseforge/internal/util/jsonutil"
)

const maxAttempts = 3

// Analyzer runs the consistency passes against a gateway client.
type Analyzer struct {
	LLM   llmclient.Client
	Cache *Cache
}

func New(llm llmclient.Client, cache *Cache) *Analyzer {
	return &Analyzer{LLM: llm, Cache: cache}
}

// call checks the cache first, then runs the gateway with bounded retries.
// A nil error always comes with a syntactically valid raw payload.
func (a *Analyzer) call(ctx context.Context, caseID, stage, key, system string, input any, schema json.RawMessage) (json.RawMessage, bool, error) {
	if ent, ok := a.Cache.Get(key); ok {
		return ent.Result, true, nil
	}
	ctx = llmclient.WithStage(ctx, stage)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := a.LLM.GenerateStructured(ctx, caseID, system, userInput(input), schema)
		if err == nil {
			var probe map[string]json.RawMessage
			if perr := jsonutil.UnmarshalRaw(raw, &probe); perr == nil {
				a.Cache.Put(key, raw)
				return raw, false, nil
			}
			err = fmt.Errorf("malformed analysis output")
		}
		lastErr = err
		log.Printf("redteam %s: attempt %d/%d failed: %v", stage, attempt, maxAttempts, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, false, lastErr
}

func userInput(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return "[INPUT]\n" + string(b)
}
