package scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetchFulltext(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/https://example.com/paper.pdf" {
			t.Errorf("path = %q, want reader-wrapped target", r.URL.Path)
		}
		w.Write([]byte("Title: A Paper\n\nFull text here."))
	}))
	defer ts.Close()

	s := newTestServer(ts.URL)
	_, out, err := s.fetchFulltext(context.Background(), nil, fetchFulltextInput{
		PreferredFulltextURL: "https://example.com/paper.pdf",
	})
	if err != nil {
		t.Fatalf("fetchFulltext() error = %v", err)
	}
	if !strings.Contains(out.Text, "Full text here.") {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestFetchFulltextStripsReaderPrefix(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/https://example.com/x" {
			t.Errorf("path = %q, want prefix stripped exactly once", r.URL.Path)
		}
		w.Write([]byte("content"))
	}))
	defer ts.Close()

	s := newTestServer(ts.URL)
	// The caller passed a URL that is already wrapped for the reader.
	_, out, err := s.fetchFulltext(context.Background(), nil, fetchFulltextInput{
		PreferredFulltextURL: ts.URL + "/https://example.com/x",
	})
	if err != nil {
		t.Fatalf("fetchFulltext() error = %v", err)
	}
	if out.Text != "content" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestFetchFulltextRejectsUnsafeURL(t *testing.T) {
	t.Parallel()

	var hit atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer ts.Close()

	s := newTestServer(ts.URL)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://localhost:8080/admin",
		"ftp://example.com/file",
		"/relative/path",
	} {
		_, _, err := s.fetchFulltext(context.Background(), nil, fetchFulltextInput{PreferredFulltextURL: target})
		if err == nil || !strings.Contains(err.Error(), "invalid or disallowed URL") {
			t.Errorf("fetchFulltext(%q) error = %v, want rejection", target, err)
		}
	}
	if hit.Load() {
		t.Error("rejected URLs must not reach the network")
	}
}

func TestFetchFulltextEmptyBody(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	s := newTestServer(ts.URL)
	_, _, err := s.fetchFulltext(context.Background(), nil, fetchFulltextInput{
		PreferredFulltextURL: "https://example.com/gone.pdf",
	})
	if err == nil || !strings.Contains(err.Error(), "empty content") {
		t.Errorf("error = %v, want empty-content message", err)
	}
}
