// Package covalent is the HTTP adapter for the Covalent block-data and
// historical pricing API.
package covalent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/losscheck/internal/source"
)

const (
	DefaultBaseURL  = "https://api.covalenthq.com/v1"
	defaultPageSize = 100
	maxBodyBytes    = 32 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Retries   int     // attempts after the first
	RateLimit float64 // requests per second, 0 disables limiting
	PageSize  int
}

// Client issues rate-limited, retried GET requests to the Covalent API.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	limiter  *rate.Limiter
	retries  int
	pageSize int
	backoff  time.Duration // initial retry interval
	logger   *zap.Logger
}

// NewClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		http:     httpClient,
		baseURL:  base,
		apiKey:   cfg.APIKey,
		limiter:  rate.NewLimiter(limit, 1),
		retries:  cfg.Retries,
		pageSize: pageSize,
		backoff:  250 * time.Millisecond,
		logger:   logger.Named("covalent"),
	}
}

// envelope is the response wrapper shared by every endpoint.
type envelope[T any] struct {
	Data         T      `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    int    `json:"error_code"`
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// get fetches path into out. 429 and 5xx responses and transport errors are
// retried; any other failure is returned at once. Every returned error
// except cancellation wraps source.ErrUpstream.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.backoff
	policy.MaxInterval = 20 * c.backoff

	notify := func(err error, d time.Duration) {
		c.logger.Warn("Retrying request", zap.String("path", path), zap.Duration("backoff", d), zap.Error(err))
	}

	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.do(ctx, endpoint)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retries+1)),
		backoff.WithNotify(notify))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: GET %s: %w", source.ErrUpstream, path, err)
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: decode %s: %v", source.ErrUpstream, path, err)
	}
	if env.Error {
		return fmt.Errorf("%w: %s: %s (code %d)", source.ErrUpstream, path, env.ErrorMessage, env.ErrorCode)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", source.ErrUpstream, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, &statusError{Status: resp.StatusCode, Body: snippet(body)}
	case resp.StatusCode >= 500:
		return nil, &statusError{Status: resp.StatusCode, Body: snippet(body)}
	default:
		return nil, backoff.Permanent(&statusError{Status: resp.StatusCode, Body: snippet(body)})
	}
}

// IsNotFound reports whether err came from a 404 response.
func IsNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
