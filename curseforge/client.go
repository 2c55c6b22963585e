package curseforge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/metrics"

	"go.uber.org/zap"
)

const (
	// APITimeout bounds a single catalog request, body included.
	APITimeout = 30 * time.Second

	// maxJSONResponseBytes caps how much of a response body is read (10 MB).
	maxJSONResponseBytes = 10 << 20

	// maxErrorBodyBytes caps the body kept on an HTTPStatusError.
	maxErrorBodyBytes = 4 << 10

	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Params are query parameters. Empty values are omitted when encoded, which is
// how callers express "filter not set".
type Params map[string]string

// Encode returns the non-empty parameters in key order.
func (p Params) Encode() string {
	values := url.Values{}
	for k, v := range p {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

// Client issues authenticated GET requests against the CurseForge API.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// ClientOption configures a Client during construction.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client, useful for tests or proxies.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout replaces APITimeout as the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry enables retrying transport failures, 429 and 503 responses up to
// maxRetries extra attempts. The delay doubles from baseDelay on each attempt
// unless the server sends Retry-After.
func WithRetry(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
		if baseDelay > 0 {
			c.retryDelay = baseDelay
		}
	}
}

// NewClient builds a Client from cfg. It performs no network activity and
// fails with a *config.ConfigurationError when the API key is missing.
func NewClient(cfg config.Config, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &config.ConfigurationError{Field: "CURSEFORGE_API_KEY", Reason: "is required"}
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		timeout:    APITimeout,
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: defaultRetryDelay,
		log:        zap.NewNop().Sugar(),
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultAPIURL
	}
	if c.userAgent == "" {
		c.userAgent = config.DefaultUserAgent
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get requests endpoint (a path such as "/v1/mods/search") with params and
// decodes the JSON body into target. Failures are *NetworkError,
// *HTTPStatusError or *DecodeError.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, target any) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBackoff(attempt, err)
			c.log.Warnw("Retrying catalog request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))
			if waitErr := waitForRetry(ctx, delay); waitErr != nil {
				return err
			}
		}

		err = c.get(ctx, endpoint, params, target)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func (c *Client) get(ctx context.Context, endpoint string, params Params, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fullURL := c.baseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debugw("Catalog request", zap.String("url", fullURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest(routeLabel(endpoint), 0)
		return newNetworkError(fullURL, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPIRequest(routeLabel(endpoint), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			URL:        fullURL,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err != nil {
		return newNetworkError(fullURL, err)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &DecodeError{URL: fullURL, Err: err}
	}
	return nil
}

func newNetworkError(rawURL string, err error) *NetworkError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &NetworkError{URL: rawURL, Err: err, Timeout: timeout}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

func (c *Client) retryBackoff(attempt int, lastErr error) time.Duration {
	var statusErr *HTTPStatusError
	if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > 0 {
		return min(statusErr.RetryAfter, maxRetryDelay)
	}
	delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt-1)))
	return min(delay, maxRetryDelay)
}

func waitForRetry(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter understands the delay-seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// routeLabel replaces numeric path segments so metric labels stay bounded:
// "/v1/mods/42/files/7/download-url" becomes "/v1/mods/:id/files/:id/download-url".
func routeLabel(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
