// Package scoring implements the client for the remote scoring
// service: per-day metric submission, rings-closed and milestone event
// registration, and the OAuth token handling behind them. It satisfies
// the engine.Backend interface.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/ringsync/ringsync/internal/engine"
)

// Retry and backoff constants. The scoring service sits across the
// network, so the backoff ceiling is higher than for the local daemon.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// Client talks to the scoring service. All calls are authenticated
// with a bearer token from the TokenProvider; a 401 triggers one
// refresh-and-retry before giving up with ErrAuthExpired.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger

	// sleepFunc waits between retries. Tests override this.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a scoring service client.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// SubmitDay upserts one day's metrics. The backend keys on
// (user, date), so re-submitting a day replaces it rather than
// duplicating.
func (c *Client) SubmitDay(ctx context.Context, userID string, day engine.DaySubmission) error {
	path := fmt.Sprintf("/v1/users/%s/days/%s", url.PathEscape(userID), url.PathEscape(day.Date))

	return c.do(ctx, http.MethodPut, path, day, nil)
}

// RingsClosedExists reports whether a rings-closed event is already
// recorded for the user-day.
func (c *Client) RingsClosedExists(ctx context.Context, userID, date string) (bool, error) {
	path := fmt.Sprintf("/v1/users/%s/events/rings-closed/%s", url.PathEscape(userID), url.PathEscape(date))

	return c.exists(ctx, path)
}

// CreateRingsClosed records a rings-closed event for the user-day.
func (c *Client) CreateRingsClosed(ctx context.Context, userID string, ev engine.RingsClosedEvent) error {
	path := fmt.Sprintf("/v1/users/%s/events/rings-closed", url.PathEscape(userID))

	return c.do(ctx, http.MethodPost, path, ev, nil)
}

// MilestoneExists reports whether the milestone is already recorded
// for the user.
func (c *Client) MilestoneExists(ctx context.Context, userID, milestoneID string) (bool, error) {
	path := fmt.Sprintf("/v1/users/%s/milestones/%s", url.PathEscape(userID), url.PathEscape(milestoneID))

	return c.exists(ctx, path)
}

// CreateMilestone records a streak milestone for the user.
func (c *Client) CreateMilestone(ctx context.Context, userID string, m engine.MilestoneRecord) error {
	path := fmt.Sprintf("/v1/users/%s/milestones", url.PathEscape(userID))

	return c.do(ctx, http.MethodPost, path, m, nil)
}

// exists issues a GET and maps 200 to true and 404 to false. Any
// other outcome is an error — the caller must not create an event on
// an inconclusive check.
func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err == nil {
		return true, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}

	return false, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte

	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("scoring: encoding %s body: %w", path, err)
		}
	}

	var (
		attempt   int
		refreshed bool
	)

	for {
		resp, err := c.doOnce(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("scoring: request canceled: %w", ctx.Err())
			}

			// A failed token load or refresh is not a network fault;
			// backing off and retrying cannot produce a credential.
			if errors.Is(err, ErrAuthExpired) {
				return fmt.Errorf("scoring: %s %s: %w", method, path, err)
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
					return fmt.Errorf("scoring: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return fmt.Errorf("scoring: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			defer resp.Body.Close()

			if out == nil {
				return nil
			}

			if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
				return fmt.Errorf("scoring: decoding %s response: %w", path, decErr)
			}

			return nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		// One refresh-and-retry on 401, then give up.
		if resp.StatusCode == http.StatusUnauthorized && !refreshed {
			c.logger.Info("token refused, refreshing", slog.String("path", path))
			c.tokens.Invalidate()

			refreshed = true

			continue
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
				return fmt.Errorf("scoring: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok.SetAuthHeader(req)

	return c.httpClient.Do(req)
}

// classifyStatus maps an HTTP status code to a package sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthExpired
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return ErrRejected
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
// canceled.
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
