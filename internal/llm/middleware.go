package llm

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"caseforge/internal/llmclient"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (rate limiting, logging, timeouts). Retries stay with the caller.
type Middleware func(llmclient.Client) llmclient.Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Client, mws ...Middleware) llmclient.Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Logging --------

// WithLogging logs request size and errors. Pass nil for log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.Client) llmclient.Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.Client
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	l.log.Printf("llm request (%s/%s): %d bytes", caseID, llmclient.StageFrom(ctx), len(system)+len(user))
	out, err := l.next.Generate(ctx, caseID, system, user)
	if err != nil {
		l.log.Printf("llm error (%s/%s): %v", caseID, llmclient.StageFrom(ctx), err)
	}
	return out, err
}

func (l *logging) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	l.log.Printf("llm request (%s/%s): %d bytes", caseID, llmclient.StageFrom(ctx), len(system)+len(user))
	raw, err := l.next.GenerateJSON(ctx, caseID, system, user)
	if err != nil {
		l.log.Printf("llm error (%s/%s): %v", caseID, llmclient.StageFrom(ctx), err)
	}
	return raw, err
}

func (l *logging) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	l.log.Printf("llm request (%s/%s): %d bytes (schema %d bytes)", caseID, llmclient.StageFrom(ctx), len(system)+len(user), len(schema))
	raw, err := l.next.GenerateStructured(ctx, caseID, system, user, schema)
	if err != nil {
		l.log.Printf("llm error (%s/%s): %v", caseID, llmclient.StageFrom(ctx), err)
	}
	return raw, err
}

// -------- Per-call timeout --------

// WithTimeout bounds every generation call. A deadline hit surfaces as the
// context error, which callers treat as a retryable failure.
func WithTimeout(d time.Duration) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next llmclient.Client
	d    time.Duration
}

func (t *timed) Name() string { return t.next.Name() }
func (t *timed) Close() error { return t.next.Close() }

func (t *timed) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Generate(ctx, caseID, system, user)
}

func (t *timed) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GenerateJSON(ctx, caseID, system, user)
}

func (t *timed) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GenerateStructured(ctx, caseID, system, user, schema)
}

// -------- Rate limiting --------

// RateLimit limits request rate with a token bucket. If rps <= 0 the
// limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next llmclient.Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }

func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	if c.rl != nil {
		if err := c.rl.Acquire(ctx); err != nil {
			return "", err
		}
	}
	return c.next.Generate(ctx, caseID, system, user)
}

func (c *rateLimited) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	if c.rl != nil {
		if err := c.rl.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return c.next.GenerateJSON(ctx, caseID, system, user)
}

func (c *rateLimited) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	if c.rl != nil {
		if err := c.rl.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return c.next.GenerateStructured(ctx, caseID, system, user, schema)
}
