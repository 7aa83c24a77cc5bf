package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/resilience"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 8 << 20

// guard wraps outbound calls to one provider with a token bucket, a circuit
// breaker, retries and a per-attempt timeout.
type guard struct {
	name    string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

func newGuard(name string, rps float64, timeout time.Duration, m *metrics.Metrics) *guard {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &guard{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
		breaker: resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
			FailureThreshold:    5,
			ResetTimeout:        30 * time.Second,
			HalfOpenMaxRequests: 1,
			OnStateChange: func(name string, s resilience.State) {
				m.BreakerState(name, int(s))
			},
		}),
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		timeout: timeout,
	}
}

// call runs fn under the guard.
func call[T any](ctx context.Context, g *guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := resilience.Retry(ctx, g.name, g.retry, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}
		return g.breaker.Execute(func() error {
			v, err := resilience.Call(ctx, g.timeout, g.name, fn)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
	})
	return out, err
}

// statusError turns a non-2xx response into an error. Client errors other
// than 429 are permanent.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return resilience.Permanent(err)
	}
	return err
}

// get fetches url and returns the body and content type.
func get(ctx context.Context, client *http.Client, url, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", "pfe-fsa-plagiarism-checker/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
