// Package providers implements the upstream weather adapters. Each adapter
// owns its provider's URL shapes, field names and source units, and returns
// the canonical weather.RawForecast. All HTTP calls share one resilience
// path: exponential backoff around transient failures inside a per-provider
// circuit breaker.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/yorgis/weatherproxy/internal/metrics"
	"github.com/yorgis/weatherproxy/internal/weather"
)

// Config bundles the HTTP client and resilience settings shared by adapters.
type Config struct {
	Client    *http.Client
	UserAgent string

	// MaxElapsed caps the total retry budget for one fetch.
	MaxElapsed time.Duration
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// fetchJSON GETs url with retries and the provider's circuit breaker, and
// returns the response body. Rate limits and 5xx are retried with
// exponential backoff; other non-2xx statuses fail immediately. The
// returned error is always a *weather.FetchError.
func fetchJSON(ctx context.Context, cfg Config, cb *gobreaker.CircuitBreaker, provider, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}

		resp, err := cfg.Client.Do(req)
		if err != nil {
			// Network failures and timeouts are worth one more try.
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &statusError{code: resp.StatusCode}
		}
		if resp.StatusCode >= 500 {
			return &statusError{code: resp.StatusCode}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&statusError{code: resp.StatusCode})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	start := time.Now()
	_, err := cb.Execute(func() (interface{}, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 500 * time.Millisecond
		bo.MaxInterval = 5 * time.Second
		bo.MaxElapsedTime = cfg.MaxElapsed
		return nil, backoff.Retry(operation, backoff.WithContext(bo, ctx))
	})
	metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		ferr := classifyFetch(provider, err)
		metrics.ProviderCallsTotal.WithLabelValues(provider, string(weather.KindOf(ferr))).Inc()
		return nil, ferr
	}

	metrics.ProviderCallsTotal.WithLabelValues(provider, "success").Inc()
	return body, nil
}

func classifyFetch(provider string, err error) error {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		return weather.NewFetchError(provider, weather.FetchRateLimited, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return weather.NewFetchError(provider, weather.FetchUnavailable, fmt.Errorf("circuit open: %w", err))
	}
	return weather.NewFetchError(provider, weather.FetchUnavailable, err)
}

// malformed wraps a parse or schema failure for a provider body.
func malformed(provider string, err error) error {
	return weather.NewFetchError(provider, weather.FetchMalformed, err)
}

// at returns the i-th element of a nullable series, or nil when the series
// is shorter than the lockstep time axis.
func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
