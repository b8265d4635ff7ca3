package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-UA", r.UserAgent())
		w.Header().Set("X-Seen-Trace", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte("<html><title>Hi</title></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{UserAgent: "canvas-test-agent"})

	resp, err := f.Fetch(context.Background(), canvas.FetchRequest{
		URL:     srv.URL + "/page",
		Headers: http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html><title>Hi</title></html>", string(resp.Body))
	assert.Equal(t, "canvas-test-agent", resp.Headers.Get("X-Seen-UA"))
	assert.Equal(t, "yes", resp.Headers.Get("X-Seen-Trace"))
	assert.Equal(t, srv.URL+"/page", resp.URL)
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{})
	for range 2 {
		resp, err := f.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/page"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestFetchReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{})
	resp, err := f.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{Timeout: 100 * time.Millisecond})
	_, err := f.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/slow"})
	require.Error(t, err)
}

func TestFetchContextCanceled(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, canvas.FetchRequest{URL: srv.URL + "/slow"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), canvas.FetchRequest{URL: target})
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := canvas.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result canvas.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	collyReq := &colly.Request{Headers: &http.Header{}}
	copyHeaders(nil, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

func TestFetchRequestUserAgentOverridesDefault(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	f := New(Config{UserAgent: "collector-default"})
	resp, err := f.Fetch(context.Background(), canvas.FetchRequest{
		URL:     srv.URL + "/page",
		Headers: http.Header{"User-Agent": {"per-request"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "per-request", resp.Headers.Get("X-Seen-UA"))
}

func TestFetchFlagsBodiesOverTheCap(t *testing.T) {
	t.Parallel()

	const limit = 64
	mux := http.NewServeMux()
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(bytes.Repeat([]byte{0xab}, limit+1))
	})
	mux.HandleFunc("/exact", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(bytes.Repeat([]byte{0xcd}, limit))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{MaxBodyBytes: limit})

	resp, err := f.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/big"})
	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Len(t, resp.Body, limit)

	resp, err = f.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/exact"})
	require.NoError(t, err)
	assert.False(t, resp.Truncated)
	assert.Len(t, resp.Body, limit)

	unlimited := New(Config{})
	resp, err = unlimited.Fetch(context.Background(), canvas.FetchRequest{URL: srv.URL + "/big"})
	require.NoError(t, err)
	assert.False(t, resp.Truncated)
	assert.Len(t, resp.Body, limit+1)
}
