package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// FakeClient answers per pipeline stage from a canned response table, for
// offline runs and tests. It is safe for concurrent use and counts calls so
// tests can assert on cache behavior.
type FakeClient struct {
	mu        sync.Mutex
	responses map[string]any   // stage key -> payload
	errs      map[string][]error // stage key -> errors to return first, in order
	calls     map[string]int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		responses: make(map[string]any),
		errs:      make(map[string][]error),
		calls:     make(map[string]int),
	}
}

// RespondFunc computes a payload from the user prompt. Registering one as a
// stage payload lets per-item stages (which validate returned ids) answer
// each fan-out task individually.
type RespondFunc func(user string) any

// Respond registers the payload returned for a stage key.
func (f *FakeClient) Respond(stage string, payload any) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[stage] = payload
	return f
}

// FailFirst queues errors returned before the canned payload, to exercise
// caller-side retries.
func (f *FakeClient) FailFirst(stage string, errs ...error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[stage] = append(f.errs[stage], errs...)
	return f
}

// Calls returns how many times the given stage hit the fake.
func (f *FakeClient) Calls(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

// TotalCalls returns the number of calls across all stages.
func (f *FakeClient) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) take(ctx context.Context, user string) (any, error) {
	stage := StageFrom(ctx)
	f.mu.Lock()
	f.calls[stage]++
	if pending := f.errs[stage]; len(pending) > 0 {
		err := pending[0]
		f.errs[stage] = pending[1:]
		f.mu.Unlock()
		return nil, err
	}
	payload, ok := f.responses[stage]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fake llm: no response registered for stage %q", stage)
	}
	if fn, ok := payload.(RespondFunc); ok {
		payload = fn(user)
	}
	return payload, nil
}

func (f *FakeClient) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	payload, err := f.take(ctx, user)
	if err != nil {
		return "", err
	}
	if s, ok := payload.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(payload)
	return string(b), err
}

func (f *FakeClient) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	payload, err := f.take(ctx, user)
	if err != nil {
		return nil, err
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

func (f *FakeClient) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	return f.GenerateJSON(ctx, caseID, system, user)
}
