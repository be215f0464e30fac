package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential retry behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles the HTTP client and its retry settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
)

// doRequestWithResilience executes the request with retries, exponential
// backoff, and a circuit breaker around the upstream weather API.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errors.New("http client not configured")
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, errors.New("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.Backoff.MaxInterval > 0 && delay > cfg.Backoff.MaxInterval {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}
