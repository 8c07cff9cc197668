package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse reports a model call that returned no usable candidate.
var ErrEmptyResponse = errors.New("llmclient: empty response from model")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Client is the opaque text-generation capability. Implementations focus on
// the API call itself; cross-cutting concerns (rate limiting, logging) are
// applied via llm.Middleware, and retries belong to the caller, never here.
type Client interface {
	Name() string
	Close() error

	// Generate returns free-form text for a system/user prompt pair.
	Generate(ctx context.Context, caseID, system, user string) (string, error)

	// GenerateJSON asks for a JSON response and returns the raw payload.
	GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error)

	// GenerateStructured additionally constrains the response with a JSON
	// schema document. The schema is advisory; callers must still validate.
	GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error)
}

type stageKey struct{}

// WithStage tags the context with the pipeline stage issuing the call, for
// logging and for fake clients that answer per stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage tag, or "".
func StageFrom(ctx context.Context) string {
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}
