package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxRetryAfterSeconds = 300

// ClientOptions parameterise the shared management API client.
type ClientOptions struct {
	Timeout         time.Duration
	RequestInterval time.Duration
	MaxRetries      int
	InitialBackoff  time.Duration
	UserAgent       string
	Transport       http.RoundTripper
	// OnResponse is called with every upstream status code, zero for transport failures.
	OnResponse func(status int)
}

// Client performs paced, retried calls against the management API.
type Client struct {
	opts    ClientOptions
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu       sync.Mutex
	requests int
	last     time.Time
}

// NewClient constructs a management API client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: timeout, Transport: opts.Transport},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "management_client").Logger(),
	}
}

// Requests returns the number of upstream attempts made so far.
func (c *Client) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

// Do sends the request, retrying throttled and server-side failures, and returns the body of a 2xx response.
func (c *Client) Do(ctx context.Context, method, url, token string, body []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		c.countRequest(url)

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		} else {
			req.Header.Set("User-Agent", "azcostalert/1.0")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.observe(0)
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close()
		c.observe(resp.StatusCode)

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return payload, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrUpstreamAuth, parseAPIError(resp.StatusCode, payload)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			err := fmt.Errorf("%w: %v", ErrUpstreamRequest, parseAPIError(resp.StatusCode, payload))
			if secs, ok := retryAfterSeconds(resp.Header.Get("Retry-After"), time.Now()); ok {
				c.logger.Warn().Int("status", resp.StatusCode).Int("retry_after_s", secs).Str("url", url).Msg("upstream asked to retry later")
				return nil, &retryLaterError{err: err, after: backoff.RetryAfter(secs)}
			}
			c.logger.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("retryable upstream response")
			return nil, err
		default:
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrUpstreamRequest, parseAPIError(resp.StatusCode, payload)))
		}
	}

	policy := backoff.NewExponentialBackOff()
	if c.opts.InitialBackoff > 0 {
		policy.InitialInterval = c.opts.InitialBackoff
	}
	payload, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.opts.MaxRetries)+1),
	)
	if err != nil {
		if !errors.Is(err, ErrUpstreamAuth) && !errors.Is(err, ErrUpstreamRequest) {
			err = fmt.Errorf("%w: %v", ErrUpstreamRequest, err)
		}
		return nil, err
	}
	return payload, nil
}

// retryLaterError carries the upstream failure together with the server requested delay.
type retryLaterError struct {
	err   error
	after error
}

func (e *retryLaterError) Error() string { return e.err.Error() }

func (e *retryLaterError) Unwrap() []error { return []error{e.err, e.after} }

// retryAfterSeconds reads a Retry-After header given as delay seconds or an HTTP date.
func retryAfterSeconds(header string, now time.Time) (int, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0, false
		}
		return min(secs, maxRetryAfterSeconds), true
	}
	at, err := http.ParseTime(header)
	if err != nil {
		return 0, false
	}
	secs := int(math.Ceil(at.Sub(now).Seconds()))
	return min(max(secs, 0), maxRetryAfterSeconds), true
}

func (c *Client) countRequest(url string) {
	c.mu.Lock()
	now := time.Now()
	c.requests++
	count := c.requests
	var interval time.Duration
	if !c.last.IsZero() {
		interval = now.Sub(c.last)
	}
	c.last = now
	c.mu.Unlock()

	c.logger.Debug().Int("request", count).Dur("since_previous", interval).Str("url", url).Msg("upstream request")
}

func (c *Client) observe(status int) {
	if c.opts.OnResponse != nil {
		c.opts.OnResponse(status)
	}
}

type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error.Message != "" {
			if apiErr.Error.Code != "" {
				return fmt.Errorf("management api error (%d) %s: %s", status, apiErr.Error.Code, apiErr.Error.Message)
			}
			return fmt.Errorf("management api error (%d): %s", status, apiErr.Error.Message)
		}
		if apiErr.Error.Code != "" {
			return fmt.Errorf("management api error (%d): %s", status, apiErr.Error.Code)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("management api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("management api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("management api error (%d)", status)
}
