package httpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

type stubResponse struct {
	status int
	body   []byte
}

func (r stubResponse) Body() []byte    { return r.body }
func (r stubResponse) StatusCode() int { return r.status }

type stubClient struct {
	calls int
	resp  Response
	err   error
}

func (s *stubClient) Get(context.Context, string, map[string]string) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestGuardedClientOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubClient{err: errors.New("connection refused")}
	var transitions []string
	client := NewGuardedClient(inner, GuardOptions{
		Name:        "test-open",
		MaxFailures: 3,
		OpenTimeout: time.Hour,
		OnStateChange: func(_, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), "http://x", nil); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := client.Get(context.Background(), "http://x", nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("open breaker should not call inner client, calls=%d", inner.calls)
	}
	if client.State() != "open" {
		t.Fatalf("expected open state, got %s", client.State())
	}
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestGuardedClientReturnsServerErrorResponses(t *testing.T) {
	inner := &stubClient{resp: stubResponse{status: 503, body: []byte("busy")}}
	client := NewGuardedClient(inner, GuardOptions{Name: "test-5xx", MaxFailures: 10})

	resp, err := client.Get(context.Background(), "http://x", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != 503 || string(resp.Body()) != "busy" {
		t.Fatalf("expected 5xx response to pass through, got %d %q", resp.StatusCode(), resp.Body())
	}
}

func TestGuardedClientHonoursContextWhileLimited(t *testing.T) {
	inner := &stubClient{resp: stubResponse{status: 200}}
	client := NewGuardedClient(inner, GuardOptions{Name: "test-limit", RatePerSecond: 0.001})

	if _, err := client.Get(context.Background(), "http://x", nil); err != nil {
		t.Fatalf("first call should use the initial token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Get(ctx, "http://x", nil); err == nil {
		t.Fatalf("expected limiter wait to fail once the context expires")
	}
	if inner.calls != 1 {
		t.Fatalf("limited call should not reach inner client, calls=%d", inner.calls)
	}
}
