package llm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"caseforge/internal/llmclient"
)

func TestWrapOrder(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("t", map[string]string{"ok": "yes"})
	client := Wrap(fake, WithLogging(nil), WithTimeout(time.Second))

	ctx := llmclient.WithStage(context.Background(), "t")
	out, err := client.Generate(ctx, "case_a", "sys", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out == "" {
		t.Fatalf("empty output")
	}
	if client.Name() != fake.Name() {
		t.Fatalf("middleware must not rename the client: %q", client.Name())
	}
}

func TestWithTimeoutCancelsSlowCalls(t *testing.T) {
	slow := &slowClient{delay: 200 * time.Millisecond}
	client := Wrap(slow, WithTimeout(10*time.Millisecond))

	_, err := client.Generate(context.Background(), "case_a", "sys", "user")
	if err == nil {
		t.Fatalf("expected deadline error")
	}
}

func TestRateLimitAllowsBurstThenThrottles(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("t", "ok")
	client := Wrap(fake, RateLimit(5, 2))
	ctx := llmclient.WithStage(context.Background(), "t")

	// Burst passes immediately.
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := client.Generate(ctx, "case_a", "s", "u"); err != nil {
			t.Fatalf("burst call %d: %v", i, err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("burst was throttled")
	}

	// An exhausted bucket respects context cancellation.
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := client.Generate(cctx, "case_a", "s", "u")
		done <- err
	}()
	select {
	case <-time.After(2 * time.Second):
		t.Fatalf("acquire did not observe cancellation")
	case err := <-done:
		// Either the refill beat the deadline or the context fired; both are
		// acceptable, blocking forever is not.
		_ = err
	}
}

func TestRateLimitCloseStopsRefill(t *testing.T) {
	fake := llmclient.NewFakeClient().Respond("t", "ok")
	// Ten-second refill period: no tokens arrive during the test.
	client := Wrap(fake, RateLimit(0.1, 1))
	ctx := llmclient.WithStage(context.Background(), "t")

	if _, err := client.Generate(ctx, "case_a", "s", "u"); err != nil {
		t.Fatalf("burst call: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// With the refill goroutine stopped and the bucket empty, acquisition
	// must fail fast instead of blocking for a token that never comes.
	rl := client.(*rateLimited).rl
	for {
		select {
		case <-rl.tokens:
			continue
		default:
		}
		break
	}
	if err := rl.Acquire(context.Background()); err == nil {
		t.Fatalf("acquire succeeded on a closed limiter")
	}
}

type slowClient struct {
	delay time.Duration
}

func (s *slowClient) Name() string { return "slow" }
func (s *slowClient) Close() error { return nil }

func (s *slowClient) Generate(ctx context.Context, caseID, system, user string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(s.delay):
		return "done", nil
	}
}

func (s *slowClient) GenerateJSON(ctx context.Context, caseID, system, user string) (json.RawMessage, error) {
	out, err := s.Generate(ctx, caseID, system, user)
	return json.RawMessage(out), err
}

func (s *slowClient) GenerateStructured(ctx context.Context, caseID, system, user string, schema json.RawMessage) (json.RawMessage, error) {
	return s.GenerateJSON(ctx, caseID, system, user)
}
