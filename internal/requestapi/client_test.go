package requestapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient builds a client against the fake upstream with jitter
// disabled so waits are deterministic.
func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.JitterMax = -1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNewRequiresAbsoluteBaseURL(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "api.openalex.org", "/relative"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) = nil error, want rejection", base)
		}
	}
	if _, err := New(Config{BaseURL: "https://api.openalex.org"}); err != nil {
		t.Errorf("New(absolute) error = %v", err)
	}
}

func TestGetSuccess(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"meta": {"count": 1}}`))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	res, err := c.Get(context.Background(), "/works", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.IsJSON {
		t.Error("IsJSON = false for a JSON body")
	}
	var out struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := res.Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.Meta.Count != 1 {
		t.Errorf("count = %d", out.Meta.Count)
	}
}

func TestGetNonJSONBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text page"))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	res, err := c.Get(context.Background(), "/page", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.IsJSON {
		t.Error("IsJSON = true for a text body")
	}
	if res.Text() != "plain text page" {
		t.Errorf("Text() = %q", res.Text())
	}
	if err := res.Decode(&struct{}{}); err == nil {
		t.Error("Decode() on a text body must fail")
	}
}

func TestGetRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Retry-After 0 keeps the test fast by replacing the backoff.
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 3})
	res, err := c.Get(context.Background(), "/flaky", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if !res.IsJSON {
		t.Error("final response not decoded")
	}
}

func TestGetRetryAfterOverridesBackoff(t *testing.T) {
	t.Parallel()

	// The hint is deliberately above the 500ms first-retry backoff so a
	// wait in the hinted range proves the override, not the schedule.
	var mu sync.Mutex
	var stamps []time.Time
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		first := len(stamps) == 1
		mu.Unlock()
		if first {
			w.Header().Set("Retry-After", "0.8")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 2})
	if _, err := c.Get(context.Background(), "/limited", nil, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 2 {
		t.Fatalf("upstream saw %d requests, want 2", len(stamps))
	}
	gap := stamps[1].Sub(stamps[0])
	if gap < 700*time.Millisecond {
		t.Errorf("retry waited %v, want the 800ms Retry-After hint to replace the 500ms backoff", gap)
	}
	if gap > 2*time.Second {
		t.Errorf("retry waited %v, want close to the 800ms hint", gap)
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 3})
	_, err := c.Get(context.Background(), "/limited", nil, nil)

	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want full attempt budget", got)
	}
}

func TestGetFatalStatusDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 3})
	_, err := c.Get(context.Background(), "/denied", nil, nil)

	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden {
		t.Fatalf("err = %v, want StatusError 403", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGetNotFoundSentinel(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer ts.Close()

	// With NotFoundOK the 404 is a sentinel, not an error.
	c := newTestClient(t, Config{BaseURL: ts.URL, NotFoundOK: true})
	res, err := c.Get(context.Background(), "/missing", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !res.NotFound {
		t.Error("NotFound = false")
	}
	if len(res.Body) != 0 {
		t.Errorf("Body = %q, want empty", res.Body)
	}

	// Without it, 404 is fatal.
	c2 := newTestClient(t, Config{BaseURL: ts.URL})
	_, err = c2.Get(context.Background(), "/missing", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("err = %v, want StatusError 404", err)
	}
}

func TestGetNoContent(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	res, err := c.Get(context.Background(), "/empty", nil, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Status != http.StatusNoContent || len(res.Body) != 0 || res.IsJSON {
		t.Errorf("res = %+v, want empty 204 result", res)
	}
}

func TestGetNetworkErrorRetries(t *testing.T) {
	t.Parallel()

	// Grab an address with nothing listening on it.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close()

	c := newTestClient(t, Config{BaseURL: addr, MaxRetries: 1})
	_, err := c.Get(context.Background(), "/anywhere", nil, nil)
	if err == nil {
		t.Fatal("Get() against a closed port must fail")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Errorf("err = %v, want a network error, not a status", err)
	}
}

func TestGetMergesHeadersAndParams(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Default"); got != "base" {
			t.Errorf("X-Default = %q", got)
		}
		if got := r.Header.Get("X-Shared"); got != "call" {
			t.Errorf("X-Shared = %q, want per-call header to win", got)
		}
		q := r.URL.Query()
		if q.Get("mailto") != "a@b.org" || q.Get("page") != "2" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte("{}"))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{
		BaseURL:       ts.URL,
		Headers:       map[string]string{"X-Default": "base", "X-Shared": "default"},
		DefaultParams: Map{"mailto": "a@b.org"},
	})
	_, err := c.Get(context.Background(), "/works",
		Map{"page": 2},
		map[string]string{"X-Shared": "call"},
	)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestGetAsyncDeliversOneResult(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"async": true}`))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})
	ch := c.GetAsync(context.Background(), "/works", nil, nil)

	ar, ok := <-ch
	if !ok {
		t.Fatal("channel closed without a result")
	}
	if ar.Err != nil {
		t.Fatalf("GetAsync() error = %v", ar.Err)
	}
	if !ar.Result.IsJSON {
		t.Error("IsJSON = false")
	}
	if _, ok := <-ch; ok {
		t.Error("channel delivered a second value")
	}
}

func TestGetCancellationDuringRetryWait(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Retry-After: the client falls back to the 500ms backoff,
		// which the canceled context must cut short.
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	c := newTestClient(t, Config{BaseURL: ts.URL, MaxRetries: 5})
	start := time.Now()
	_, err := c.Get(ctx, "/slow", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("cancellation took %v, want prompt return", elapsed)
	}
}

func TestCloseIsIdempotentAndReacquires(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer ts.Close()

	c := newTestClient(t, Config{BaseURL: ts.URL})

	if _, err := c.Get(context.Background(), "/a", nil, nil); err != nil {
		t.Fatalf("Get() before close error = %v", err)
	}
	c.Close()
	c.Close() // second close is a no-op

	// A call after Close acquires a fresh transport handle.
	if _, err := c.Get(context.Background(), "/b", nil, nil); err != nil {
		t.Fatalf("Get() after close error = %v", err)
	}
	ar := <-c.GetAsync(context.Background(), "/c", nil, nil)
	if ar.Err != nil {
		t.Fatalf("GetAsync() after close error = %v", ar.Err)
	}
}

func TestBackoffWaitDoublesAndCaps(t *testing.T) {
	t.Parallel()

	// Jitter disabled: the sequence is exact.
	wants := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
		8 * time.Second,
	}
	for i, want := range wants {
		if got := backoffWait(i+1, -1); got != want {
			t.Errorf("backoffWait(%d) = %v, want %v", i+1, got, want)
		}
	}

	// With jitter enabled the wait lands in [base, base+jitterMax].
	jit := 100 * time.Millisecond
	for range 50 {
		got := backoffWait(1, jit)
		if got < 500*time.Millisecond || got > 500*time.Millisecond+jit {
			t.Fatalf("backoffWait with jitter = %v, out of range", got)
		}
	}
}
