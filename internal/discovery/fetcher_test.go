package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/apperr"
	"streamhub/internal/testutil"
)

func newTestFetcher(url string, retries uint) *HTTPFetcher {
	return NewHTTPFetcher(FetcherConfig{
		Name:        "test",
		BaseURL:     url,
		Path:        "/titles",
		PageTimeout: 2 * time.Second,
		Retries:     retries,
		RetryDelay:  time.Millisecond,
	}, nil)
}

func TestParsePageShapes(t *testing.T) {
	recs, ok := ParsePage([]byte(`[{"id":1},{"id":2}]`))
	require.True(t, ok)
	assert.Len(t, recs, 2)

	for _, key := range []string{"results", "data", "items", "content"} {
		recs, ok := ParsePage([]byte(`{"page":1,"` + key + `":[{"id":1}]}`))
		require.True(t, ok, key)
		assert.JSONEq(t, `{"id":1}`, string(recs[0]))
	}

	_, ok = ParsePage([]byte(`{"results":"nope"}`))
	assert.False(t, ok)
	_, ok = ParsePage([]byte(`not json`))
	assert.False(t, ok)
}

func TestHTTPFetcherFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/titles", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"results":[{"id":"a","title":"A"},{"id":"b","title":"B"}]}`))
	}))
	defer srv.Close()

	page := newTestFetcher(srv.URL, 0).FetchPage(context.Background(), 3)
	require.NoError(t, page.Err)
	assert.Equal(t, 3, page.Index)
	assert.Len(t, page.Records, 2)
}

func TestHTTPFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"a","title":"A"}]`))
	}))
	defer srv.Close()

	page := newTestFetcher(srv.URL, 2).FetchPage(context.Background(), 1)
	require.NoError(t, page.Err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	page := newTestFetcher(srv.URL, 3).FetchPage(context.Background(), 9)
	assert.Empty(t, page.Records)
	assert.ErrorIs(t, page.Err, apperr.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcherMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"hello"}`))
	}))
	defer srv.Close()

	page := newTestFetcher(srv.URL, 2).FetchPage(context.Background(), 1)
	assert.Empty(t, page.Records)
	assert.ErrorIs(t, page.Err, errMalformedPage)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 0)
	f.cfg.PageTimeout = 50 * time.Millisecond

	page := f.FetchPage(context.Background(), 1)
	assert.ErrorIs(t, page.Err, apperr.ErrUpstreamUnavailable)
	assert.Empty(t, page.Records)
}

func TestHTTPFetcherNonPositivePage(t *testing.T) {
	page := newTestFetcher("http://127.0.0.1:1", 0).FetchPage(context.Background(), 0)
	assert.NoError(t, page.Err)
	assert.Empty(t, page.Records)
}

func TestHTTPFetcherBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetcherConfig{Name: "flaky", BaseURL: srv.URL, Path: "/titles", RetryDelay: time.Millisecond}, testutil.Logger(t))
	for i := 0; i < 5; i++ {
		require.Error(t, f.FetchPage(context.Background(), 1).Err)
	}
	page := f.FetchPage(context.Background(), 1)
	assert.True(t, errors.Is(page.Err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), calls.Load(), "open breaker fails fast")
}

func TestHTTPFetcherBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[{"id":"a","title":"A"}]`))
		case "2":
			_, _ = w.Write([]byte(`{"message":"hello"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 0)
	for i := 0; i < 6; i++ {
		assert.ErrorIs(t, f.FetchPage(context.Background(), 40+i).Err, apperr.ErrUpstreamUnavailable)
		assert.ErrorIs(t, f.FetchPage(context.Background(), 2).Err, errMalformedPage)
	}

	page := f.FetchPage(context.Background(), 1)
	require.NoError(t, page.Err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, gobreaker.StateClosed, f.breaker.State())
}

func TestCountsAsHealthy(t *testing.T) {
	assert.True(t, countsAsHealthy(nil))
	assert.True(t, countsAsHealthy(context.Canceled))
	assert.True(t, countsAsHealthy(errMalformedPage))
	assert.True(t, countsAsHealthy(&statusError{code: http.StatusNotFound}))
	assert.False(t, countsAsHealthy(&statusError{code: http.StatusTooManyRequests}))
	assert.False(t, countsAsHealthy(&statusError{code: http.StatusBadGateway}))
	assert.False(t, countsAsHealthy(context.DeadlineExceeded))
}
