// Package healthd implements the provider adapter for the device-local
// health daemon, which exposes the platform's biometric store over a
// loopback JSON/HTTP API. It is the authoritative on-device source for
// daily summaries, raw sample aggregates, workouts, and body metrics.
package healthd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// Retry and backoff constants.
const (
	maxRetries     = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// DefaultBaseURL is the loopback address the daemon listens on.
const DefaultBaseURL = "http://127.0.0.1:9723"

// Client is an HTTP client for the health daemon API. It handles
// request construction, retry with exponential backoff, and error
// classification. The daemon is local, so timeouts are short and
// retries few.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to
	// timeSleep. Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a health daemon client. baseURL is typically
// DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// get executes a GET against the daemon and decodes the JSON response
// into out. A 404 maps to provider.ErrNoData without retry.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

// post executes a bodyless POST against the daemon and decodes the
// JSON response into out.
func (c *Client) post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, u)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("healthd: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return fmt.Errorf("healthd: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return fmt.Errorf("healthd: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			defer resp.Body.Close()

			if out == nil {
				return nil
			}

			if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
				return fmt.Errorf("healthd: decoding %s response: %w", path, decErr)
			}

			return nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := calcBackoff(attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return fmt.Errorf("healthd: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return &provider.APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// classifyStatus maps an HTTP status code to a provider sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return provider.ErrPermissionDenied
	case http.StatusNotFound:
		return provider.ErrNoData
	default:
		return nil
	}
}

// isRetryable reports whether the status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is
// canceled. It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
