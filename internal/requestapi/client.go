// Package requestapi implements the resilient HTTP request layer shared by
// every ScholarScope operation handler.
//
// A [Client] wraps one remote REST endpoint: it merges per-call parameters
// and headers over configured defaults, issues GET requests with a fixed
// timeout, classifies responses into success / retryable / fatal, and
// retries retryable failures with exponential backoff, jitter, and
// server-supplied Retry-After overrides. Both a blocking flavor
// ([Client.Get]) and a non-blocking flavor ([Client.GetAsync]) are exposed
// with identical semantics.
//
// Clients are cheap: operation handlers construct a fresh one per
// invocation, which keeps them stateless and trivially safe for concurrent
// tool calls. The transport handle is created lazily on first use and
// released by [Client.Close].
package requestapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/scholarscope/scholarscope/internal/observe"
)

// retryableStatuses is the set of HTTP statuses treated as transient.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooEarly:            true, // 425
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// Backoff constants: exponential starting at backoffBase, doubling per
// attempt, capped at backoffCap. Jitter is added on top, bounded by the
// client's configured JitterMax.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Defaults applied by [New] when the corresponding Config field is zero.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultJitterMax  = 250 * time.Millisecond
)

// StatusError reports a non-success HTTP status, either fatal on first
// sight or a retryable status whose retries were exhausted.
type StatusError struct {
	// Status is the HTTP status code of the offending response.
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("requestapi: request failed with status %d", e.Status)
}

// Config carries the construction-time parameters of a [Client]. All
// fields are copied by [New]; the client never mutates them afterwards.
type Config struct {
	// BaseURL is the remote API root, e.g. "https://api.openalex.org".
	// Required; must be an absolute URL.
	BaseURL string

	// Headers are default request headers. Per-call headers overlay them
	// (caller wins).
	Headers map[string]string

	// DefaultParams are default query parameters. Per-call [Map] params
	// overlay them; nil-valued entries act as unset placeholders and are
	// dropped from the wire.
	DefaultParams Map

	// Timeout bounds each individual attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// NotFoundOK maps a 404 response to the not-found sentinel
	// ([Result.NotFound]) instead of a fatal error.
	NotFoundOK bool

	// MaxRetries is the total number of attempts, including the first.
	// Zero means DefaultMaxRetries.
	MaxRetries int

	// JitterMax bounds the uniformly random addition to each backoff
	// wait. Zero means DefaultJitterMax; negative disables jitter.
	JitterMax time.Duration
}

// Result is the outcome of a successful logical request.
type Result struct {
	// Status is the HTTP status of the final response.
	Status int

	// Body is the raw response body. Empty for 204 No Content and for the
	// not-found sentinel.
	Body []byte

	// IsJSON reports whether Body contains valid JSON. When false the
	// body is plain text — a non-JSON body is lenient degradation, not an
	// error.
	IsJSON bool

	// NotFound is the not-found sentinel: the server answered 404 and the
	// client was configured with NotFoundOK. Distinct from an error.
	NotFound bool
}

// Decode unmarshals the JSON body into v.
func (r Result) Decode(v any) error {
	if !r.IsJSON {
		return fmt.Errorf("requestapi: response body is not JSON")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("requestapi: decode response: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r Result) Text() string { return string(r.Body) }

// AsyncResult is delivered on the channel returned by [Client.GetAsync].
type AsyncResult struct {
	Result Result
	Err    error
}

// Client is a resilient GET client bound to one base URL. The zero value
// is not usable; construct with [New]. Configuration is immutable after
// construction. A Client may serve many concurrent logical calls; the
// lazily created transport handles are the only shared state and net/http
// makes them safe for concurrent use.
type Client struct {
	base       *url.URL
	headers    map[string]string
	defaults   Map
	timeout    time.Duration
	notFoundOK bool
	maxRetries int
	jitterMax  time.Duration

	// mu guards the lazily created per-mode transport handles. Blocking
	// and non-blocking calls each own at most one live handle; Close
	// releases both, and the next call after Close acquires a fresh one.
	mu     sync.Mutex
	httpc  *http.Client // blocking mode
	ahttpc *http.Client // non-blocking mode
}

// New constructs a Client from cfg. It returns an error only when BaseURL
// is missing or not absolute.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("requestapi: parse base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("requestapi: base url %q must be absolute", cfg.BaseURL)
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	defaults := make(Map, len(cfg.DefaultParams))
	for k, v := range cfg.DefaultParams {
		defaults[k] = v
	}

	c := &Client{
		base:       base,
		headers:    headers,
		defaults:   defaults,
		timeout:    cfg.Timeout,
		notFoundOK: cfg.NotFoundOK,
		maxRetries: cfg.MaxRetries,
		jitterMax:  cfg.JitterMax,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.jitterMax == 0 {
		c.jitterMax = DefaultJitterMax
	}
	return c, nil
}

// Get issues a GET request to path (relative to the base URL) and blocks
// until the logical call completes: either a successful [Result], the
// not-found sentinel, or an error after classification and retries.
// Retryable statuses and network-level failures are retried up to the
// configured attempt budget; any other non-success status fails
// immediately.
func (c *Client) Get(ctx context.Context, path string, params Params, headers map[string]string) (Result, error) {
	return c.do(ctx, c.ensureClient(&c.httpc), path, params, headers)
}

// GetAsync starts the same logical call as [Client.Get] on its own
// goroutine and returns a channel that delivers exactly one [AsyncResult].
// The call suspends only at the network request and at retry waits; cancel
// ctx to abandon it early.
func (c *Client) GetAsync(ctx context.Context, path string, params Params, headers map[string]string) <-chan AsyncResult {
	hc := c.ensureClient(&c.ahttpc)
	ch := make(chan AsyncResult, 1)
	go func() {
		res, err := c.do(ctx, hc, path, params, headers)
		ch <- AsyncResult{Result: res, Err: err}
		close(ch)
	}()
	return ch
}

// Close releases both transport handles. It is idempotent, and a later
// Get/GetAsync acquires a fresh handle.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpc != nil {
		c.httpc.CloseIdleConnections()
		c.httpc = nil
	}
	if c.ahttpc != nil {
		c.ahttpc.CloseIdleConnections()
		c.ahttpc = nil
	}
}

// ensureClient lazily creates the transport handle for one execution mode.
// Idempotent: at most one live handle exists per mode between Closes.
func (c *Client) ensureClient(slot **http.Client) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *slot == nil {
		*slot = &http.Client{Timeout: c.timeout}
	}
	return *slot
}

// attemptOutcome is the classified result of a single attempt. Exactly one
// of the three kinds applies; retryable outcomes optionally carry a
// server-requested wait hint. This replaces signaling retries through the
// error channel: the retry loop branches on the kind explicitly.
type attemptOutcome struct {
	kind outcomeKind

	// result is set for outcomeSuccess.
	result Result

	// err is set for outcomeRetryable and outcomeFatal: a *StatusError
	// for classified statuses, or the underlying network error.
	err error

	// retryAfter is the parsed Retry-After hint, valid when hasHint.
	retryAfter time.Duration
	hasHint    bool
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomeFatal
)

// do runs the retry state machine for one logical call: attempt, classify,
// wait, repeat. It surfaces the last retryable failure once the attempt
// budget is exhausted.
func (c *Client) do(ctx context.Context, hc *http.Client, path string, params Params, headers map[string]string) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "requestapi.get", trace.WithAttributes(
		attribute.String("http.host", c.base.Host),
		attribute.String("http.path", path),
	))
	defer span.End()

	log := observe.Logger(ctx)
	metrics := observe.DefaultMetrics()
	start := time.Now()

	var lastErr error
	for attempt := 1; ; attempt++ {
		out := c.attempt(ctx, hc, path, params, headers)

		switch out.kind {
		case outcomeSuccess:
			if attempt > 1 {
				log.Debug("request succeeded after retry", "path", path, "attempt", attempt)
			}
			outcome := "success"
			if out.result.NotFound {
				outcome = "not_found"
			}
			metrics.RecordRequest(ctx, path, outcome, time.Since(start).Seconds())
			return out.result, nil

		case outcomeFatal:
			log.Warn("request failed", "path", path, "attempt", attempt, "err", out.err)
			span.RecordError(out.err)
			metrics.RecordRequest(ctx, path, "error", time.Since(start).Seconds())
			return Result{}, out.err

		case outcomeRetryable:
			lastErr = out.err
			if attempt >= c.maxRetries {
				log.Warn("retries exhausted", "path", path, "attempts", attempt, "err", lastErr)
				span.RecordError(lastErr)
				metrics.RecordRequest(ctx, path, "error", time.Since(start).Seconds())
				return Result{}, lastErr
			}
			metrics.RequestRetries.Add(ctx, 1, metric.WithAttributes(observe.Attr("path", path)))

			wait := backoffWait(attempt, c.jitterMax)
			if out.hasHint {
				// The server knows best: its requested delay replaces the
				// computed backoff, floored at zero.
				wait = max(0, out.retryAfter)
			}
			log.Debug("retrying request",
				"path", path, "attempt", attempt, "wait", wait, "err", out.err)
			if err := sleepCtx(ctx, wait); err != nil {
				return Result{}, err
			}
		}
	}
}

// attempt performs one GET and classifies the response. It never retries
// itself and never sleeps.
func (c *Client) attempt(ctx context.Context, hc *http.Client, path string, params Params, headers map[string]string) attemptOutcome {
	u, err := c.requestURL(path, params)
	if err != nil {
		return attemptOutcome{kind: outcomeFatal, err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return attemptOutcome{kind: outcomeFatal, err: fmt.Errorf("requestapi: build request: %w", err)}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		// Connection refused, DNS failure, attempt timeout: all transient
		// from this client's point of view — but a canceled caller is not.
		if errors.Is(err, context.Canceled) {
			return attemptOutcome{kind: outcomeFatal, err: err}
		}
		return attemptOutcome{kind: outcomeRetryable, err: fmt.Errorf("requestapi: network error: %w", err)}
	}
	defer resp.Body.Close()

	if retryableStatuses[resp.StatusCode] {
		out := attemptOutcome{kind: outcomeRetryable, err: &StatusError{Status: resp.StatusCode}}
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			out.retryAfter, out.hasHint = d, true
		}
		return out
	}

	if resp.StatusCode == http.StatusNotFound && c.notFoundOK {
		return attemptOutcome{kind: outcomeSuccess, result: Result{Status: resp.StatusCode, NotFound: true}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return attemptOutcome{kind: outcomeFatal, err: &StatusError{Status: resp.StatusCode}}
	}

	if resp.StatusCode == http.StatusNoContent {
		return attemptOutcome{kind: outcomeSuccess, result: Result{Status: resp.StatusCode}}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptOutcome{kind: outcomeRetryable, err: fmt.Errorf("requestapi: read response: %w", err)}
	}

	return attemptOutcome{kind: outcomeSuccess, result: Result{
		Status: resp.StatusCode,
		Body:   body,
		IsJSON: json.Valid(body),
	}}
}

// requestURL joins path onto the base URL and applies the effective query
// string per the [Params] merge rules.
func (c *Client) requestURL(path string, params Params) (string, error) {
	full := strings.TrimRight(c.base.String(), "/") + path
	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("requestapi: build url for path %q: %w", path, err)
	}
	if q := encodeParams(params, c.defaults); q != "" {
		u.RawQuery = q
	}
	return u.String(), nil
}

// backoffWait computes the wait before retrying after the given attempt:
// backoffBase doubled per attempt, capped at backoffCap, plus uniform
// jitter in [0, jitterMax].
func backoffWait(attempt int, jitterMax time.Duration) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		if d >= backoffCap/2 {
			d = backoffCap
			break
		}
		d *= 2
	}
	if jitterMax > 0 {
		d += time.Duration(rand.Int64N(int64(jitterMax) + 1))
	}
	return d
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
