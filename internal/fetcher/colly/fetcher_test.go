package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobfetch/internal/scrape"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.UserAgent())
		require.Equal(t, "session-token", r.Header.Get("X-Session"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>posting</body></html>"))
	}))
	defer ts.Close()

	f := New(Config{UserAgent: "test-agent", PolitenessRPS: 100, PolitenessBurst: 10})
	headers := http.Header{}
	headers.Set("X-Session", "session-token")

	resp, err := f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL, Headers: headers})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "posting")
	require.Greater(t, resp.Duration, time.Duration(0))
}

func TestFetchHTTPErrorIsAResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	f := New(Config{PolitenessRPS: 100, PolitenessBurst: 10})
	resp, err := f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL})
	require.NoError(t, err, "http error statuses must be returned as responses for classification")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("posting"))
	}))
	defer ts.Close()

	f := New(Config{PolitenessRPS: 100, PolitenessBurst: 10})

	for i := 0; i < 2; i++ {
		resp, err := f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL})
		require.NoError(t, err, "fetch %d of the same URL must re-fetch, not trip revisit tracking", i+1)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&hits), "both fetches must reach the server")
}

func TestDirectFetchUnaffectedByEarlierProxiedFetch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("posting"))
	}))
	defer ts.Close()

	// Unroutable proxy: any request actually routed through it fails.
	f := New(Config{Timeout: 2 * time.Second, ProxyURL: "http://127.0.0.1:9", PolitenessRPS: 100, PolitenessBurst: 10})

	resp, err := f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL})
	require.NoError(t, err, "direct fetch before any proxy use must succeed")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL, UseProxy: true})
	require.Error(t, err, "proxied fetch must actually route through the proxy")

	resp, err = f.Fetch(context.Background(), scrape.FetchRequest{URL: ts.URL})
	require.NoError(t, err, "direct fetch after a proxied fetch must not inherit the proxy route")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second, PolitenessRPS: 100, PolitenessBurst: 10})
	_, err := f.Fetch(context.Background(), scrape.FetchRequest{URL: "http://127.0.0.1:1"})
	require.Error(t, err)
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	f := New(Config{Timeout: time.Minute, PolitenessRPS: 100, PolitenessBurst: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, scrape.FetchRequest{URL: ts.URL})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacerSpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	p := newPacer(10, 1) // one slot, then 100ms per request

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, p.Wait(ctx, "https://example.com/a"))
	require.NoError(t, p.Wait(ctx, "https://example.com/b"))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "second request to the same host must be paced")

	// A different host has its own limiter and is not delayed.
	start = time.Now()
	require.NoError(t, p.Wait(ctx, "https://other.example/a"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacerDefaults(t *testing.T) {
	t.Parallel()

	p := newPacer(0, 0)
	require.NotNil(t, p)
	require.NoError(t, p.Wait(context.Background(), "not a url"))
}
