package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialkit/recruitment-service/internal/config"
	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/observability"
)

// Study is the catalogue's view of a study: the fields this service needs to
// seed and validate recruitment, not the full catalogue record.
type Study struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Status             domain.StudyStatus `json:"status"`
	TargetParticipants int                `json:"target_participants"`
}

// Client fetches study definitions from the catalogue service with rate
// limiting and retry on transient failures.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewClient creates a catalogue client from configuration. The returned
// client is safe for concurrent use.
func NewClient(cfg config.CatalogueConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: NewRateLimiter(cfg.RateLimit, 1),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		metrics:     metrics,
		logger:      logger.With().Str("component", "catalogue_client").Logger(),
	}
}

// Study retrieves a single study definition by ID. A 404 from the catalogue
// maps to domain.ErrStudyNotFound so callers can treat the two stores
// uniformly.
func (c *Client) Study(ctx context.Context, studyID string) (*Study, error) {
	if studyID == "" {
		return nil, domain.NewValidationError("study_id", "must not be empty")
	}

	endpoint := "/api/v1/studies/" + url.PathEscape(studyID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var study Study
	if err := json.Unmarshal(body, &study); err != nil {
		return nil, fmt.Errorf("decoding catalogue response for study %s: %w", studyID, err)
	}
	return &study, nil
}

// get performs a rate-limited GET with retries on 429 and 5xx responses,
// honoring Retry-After when the catalogue sends one.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating catalogue request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if c.metrics != nil {
			c.metrics.RecordCatalogueRequest(endpoint, time.Since(start).Seconds())
		}
		if err != nil {
			lastErr = fmt.Errorf("catalogue request failed: %w", err)
			if c.metrics != nil {
				c.metrics.RecordCatalogueRequestFailed(endpoint, "transport")
			}
			if attempt < c.maxRetries {
				if waitErr := c.waitForRetry(ctx, c.retryDelay); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("reading catalogue response: %w", readErr)
			}
			return body, nil

		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrStudyNotFound

		case c.shouldRetry(resp.StatusCode) && attempt < c.maxRetries:
			if resp.StatusCode == http.StatusTooManyRequests && c.metrics != nil {
				c.metrics.RecordCatalogueRateLimited()
			}
			delay := c.retryDelayFor(resp)
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Str("endpoint", endpoint).
				Msg("retrying catalogue request")
			lastErr = fmt.Errorf("catalogue returned status %d", resp.StatusCode)
			if waitErr := c.waitForRetry(ctx, delay); waitErr != nil {
				return nil, waitErr
			}

		default:
			if c.metrics != nil {
				c.metrics.RecordCatalogueRequestFailed(endpoint, strconv.Itoa(resp.StatusCode))
			}
			return nil, fmt.Errorf("catalogue returned status %d: %s", resp.StatusCode, truncate(body, 200))
		}
	}

	return nil, lastErr
}

func (c *Client) shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// retryDelayFor reads Retry-After as either delay-seconds or an HTTP date,
// falling back to the configured delay.
func (c *Client) retryDelayFor(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.retryDelay
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return c.retryDelay
}

func (c *Client) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
