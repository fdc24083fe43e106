// Package httpclient provides HTTP GET client for the REST APIs used by tools,
// with retries on transient failures and optional rate limiting.
package httpclient

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/xlog"
	"golang.org/x/time/rate"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/pkg", "httpclient")

// DefaultRetries is the default number of attempts
const DefaultRetries = 3

// maxBodySize limits the response size
const maxBodySize = 32 << 20

// StatusError is returned when the server responds with non-2xx status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	if len(e.Body) > 0 {
		msg += ": " + llmutils.StringUpto(string(e.Body), 200)
	}
	return msg
}

// Retryable returns true for 429 and 5xx responses
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is HTTP client with retries
type Client struct {
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	limiter    *rate.Limiter
	userAgent  string
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetries sets the number of attempts, values less than 1 disable retries
func WithRetries(attempts int) Option {
	return func(c *Client) {
		c.retries = max(attempts, 1)
	}
}

// WithRetryDelay sets the initial backoff delay
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithRateLimit limits the requests per second
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithUserAgent sets User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New returns the client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retries:    DefaultRetries,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig returns the client configured from HTTP section of the config.
// Additional options are applied after the config.
func FromConfig(cfg config.HTTP, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Std()}),
		WithUserAgent(cfg.UserAgent),
	}
	if cfg.Retries > 0 {
		base = append(base, WithRetries(cfg.Retries))
	}
	if cfg.RetryDelay > 0 {
		base = append(base, WithRetryDelay(cfg.RetryDelay.Std()))
	}
	return New(append(base, opts...)...)
}

// With returns a copy of the client with the options applied
func (c *Client) With(opts ...Option) *Client {
	cp := *c
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get returns the response body of GET request.
// Network errors, 429 and 5xx responses are retried with exponential backoff,
// other non-2xx responses are returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid URL")
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vals := range query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	host := u.Host

	started := time.Now()
	defer metricskey.PerfHTTPRequest.MeasureSince(started, host)

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(errors.WithStack(err))
			}
		}

		b, err := c.do(ctx, u, headers)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(errors.WithStack(ctx.Err()))
			}
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxInterval = 10 * c.retryDelay
	bo.MaxElapsedTime = 0

	notify := func(err error, next time.Duration) {
		metricskey.StatsHTTPRequestsRetried.IncrCounter(1, host)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "retrying",
			"host", host,
			"attempt", attempt,
			"next", next.String(),
			"err", err.Error(),
		)
	}

	err = backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retries-1)), ctx),
		notify)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON decodes JSON response into out
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) error {
	body, err := c.Get(ctx, rawURL, query, withAccept(headers, "application/json"))
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode JSON response")
	}
	return nil
}

// GetXML decodes XML response into out
func (c *Client) GetXML(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) error {
	body, err := c.Get(ctx, rawURL, query, withAccept(headers, "application/xml"))
	if err != nil {
		return err
	}
	if err = xml.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode XML response")
	}
	return nil
}

func (c *Client) do(ctx context.Context, u *url.URL, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     http.MethodGet,
			URL:        u.Scheme + "://" + u.Host + u.Path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}
	return body, nil
}

func withAccept(headers map[string]string, accept string) map[string]string {
	if _, ok := headers["Accept"]; ok {
		return headers
	}
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Accept"] = accept
	return h
}
