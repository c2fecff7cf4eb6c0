package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// GuardOptions configures a GuardedClient.
type GuardOptions struct {
	// Name labels the breaker in logs and metrics.
	Name string
	// RatePerSecond caps outgoing requests; <= 0 disables limiting.
	RatePerSecond float64
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// OnStateChange is notified on breaker transitions.
	OnStateChange func(name, from, to string)
}

// GuardedClient wraps a Client with a token-bucket limiter and a circuit
// breaker. Transport errors and 5xx responses count as failures.
type GuardedClient struct {
	inner   Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[Response]
	name    string
}

var errServerStatus = errors.New("server error status")

// NewGuardedClient decorates inner with rate limiting and circuit breaking.
func NewGuardedClient(inner Client, opts GuardOptions) *GuardedClient {
	name := opts.Name
	if name == "" {
		name = "http"
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = time.Minute
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from.String(), to.String())
			}
		},
	})

	return &GuardedClient{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
		cb:      cb,
		name:    name,
	}
}

// Get waits for the limiter, then performs the request through the breaker.
// An open breaker fails fast with gobreaker.ErrOpenState wrapped.
func (g *GuardedClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", g.name, err)
	}

	resp, err := g.cb.Execute(func() (Response, error) {
		resp, err := g.inner.Get(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		// The breaker recorded the failure; callers still see the response.
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s circuit breaker: %w", g.name, err)
	}
	return resp, err
}

// State returns the breaker state name.
func (g *GuardedClient) State() string {
	return g.cb.State().String()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
