package shellcache_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/illmade-knight/go-scoutsync/pkg/shellcache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("network unreachable")

// mockTransport is a scriptable http.RoundTripper that records every request
// it sees and can simulate a dead network.
type mockTransport struct {
	mu      sync.Mutex
	calls   []string
	offline bool
	handler func(r *http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, shellcache.RequestKey(r))
	offline := m.offline
	m.mu.Unlock()

	if offline {
		return nil, errUnreachable
	}
	if m.handler != nil {
		return m.handler(r)
	}
	return okResponse(r, "content of "+r.URL.Path), nil
}

func (m *mockTransport) setOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func okResponse(r *http.Request, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func newTestWorker(t *testing.T, store shellcache.GenerationStore, transport http.RoundTripper, version string) *shellcache.Worker {
	t.Helper()
	worker, err := shellcache.NewWorker(&shellcache.WorkerConfig{
		Version: version,
		Origin:  "https://scout.example",
	}, store, transport, zerolog.Nop())
	require.NoError(t, err)
	return worker
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func getRequest(t *testing.T, rawURL string, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestWorker_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Install pre-populates the app shell", func(t *testing.T) {
		// Arrange
		store := shellcache.NewInMemoryGenerations()
		worker := newTestWorker(t, store, &mockTransport{}, "v1")

		// Act
		require.NoError(t, worker.Install(ctx))

		// Assert
		for _, path := range shellcache.DefaultAppShell {
			_, err := store.Match(ctx, "v1", "GET https://scout.example"+path)
			assert.NoError(t, err, "shell asset %s should be cached", path)
		}
	})

	t.Run("Install fails when a shell asset cannot be fetched", func(t *testing.T) {
		// Arrange
		transport := &mockTransport{}
		transport.setOffline(true)
		worker := newTestWorker(t, shellcache.NewInMemoryGenerations(), transport, "v1")

		// Act
		err := worker.Install(ctx)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, errUnreachable)
	})

	t.Run("Activate deletes every stale generation", func(t *testing.T) {
		// Arrange: generations from three older deploys plus the current one.
		store := shellcache.NewInMemoryGenerations()
		for _, version := range []string{"v9", "v10", "v11", "v12"} {
			require.NoError(t, store.Put(ctx, version, "GET https://scout.example/", shellcache.Snapshot("stale")))
		}
		worker := newTestWorker(t, store, &mockTransport{}, "v12")

		// Act
		require.NoError(t, worker.Activate(ctx))

		// Assert
		versions, err := store.Versions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"v12"}, versions)
	})
}

func TestWorker_RoundTrip(t *testing.T) {
	ctx := context.Background()

	installedWorker := func(t *testing.T) (*shellcache.Worker, *mockTransport) {
		t.Helper()
		transport := &mockTransport{}
		worker := newTestWorker(t, shellcache.NewInMemoryGenerations(), transport, "v1")
		require.NoError(t, worker.Install(ctx))
		require.NoError(t, worker.Activate(ctx))
		return worker, transport
	}

	t.Run("Root path is served from cache while offline", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		transport.setOffline(true)

		// Act
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/", nil))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "content of /", readBody(t, resp))
	})

	t.Run("Cached static asset skips the network entirely", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		before := transport.callCount()

		// Act
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/icon-192.png", nil))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "content of /icon-192.png", readBody(t, resp))
		assert.Equal(t, before, transport.callCount(), "cache-first hit must not touch the network")
	})

	t.Run("API call while offline gets a structured offline response", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		transport.setOffline(true)

		// Act
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/api/events?user=faffanis", nil))

		// Assert: a response, not a thrown error, with the offline indicator.
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"error":"offline","offline":true}`, readBody(t, resp))
	})

	t.Run("API call is never cached", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)

		// Act: a successful API call, then the network goes away.
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/api/events?user=faffanis", nil))
		require.NoError(t, err)
		_ = readBody(t, resp)
		transport.setOffline(true)
		resp2, err := worker.RoundTrip(getRequest(t, "https://scout.example/api/events?user=faffanis", nil))

		// Assert: no cached copy; the offline payload comes back instead.
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
		_ = readBody(t, resp2)
	})

	t.Run("Offline navigation falls back to the shell entry", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		transport.setOffline(true)

		// Act: a deep link that was never explicitly cached.
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/events/2026/spring", map[string]string{
			"Sec-Fetch-Mode": "navigate",
		}))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "content of /index.html", readBody(t, resp))
	})

	t.Run("Successful static fetch lands in the generation", func(t *testing.T) {
		// Arrange
		transport := &mockTransport{}
		store := shellcache.NewInMemoryGenerations()
		worker := newTestWorker(t, store, transport, "v1")
		require.NoError(t, worker.Install(ctx))

		// Act: an asset outside the app shell.
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/styles/report.css", nil))
		require.NoError(t, err)
		_ = readBody(t, resp)

		// Assert
		_, err = store.Match(ctx, "v1", "GET https://scout.example/styles/report.css")
		assert.NoError(t, err)
	})

	t.Run("Cross-origin responses are not cached", func(t *testing.T) {
		// Arrange
		transport := &mockTransport{}
		store := shellcache.NewInMemoryGenerations()
		worker := newTestWorker(t, store, transport, "v1")

		// Act
		resp, err := worker.RoundTrip(getRequest(t, "https://cdn.example/logo.png", nil))
		require.NoError(t, err)
		_ = readBody(t, resp)

		// Assert
		_, err = store.Match(ctx, "v1", "GET https://cdn.example/logo.png")
		assert.ErrorIs(t, err, shellcache.ErrNoSnapshot)
	})

	t.Run("Default class falls back to the exact cached response", func(t *testing.T) {
		// Arrange: a non-static same-origin GET cached while online.
		worker, transport := installedWorker(t)
		resp, err := worker.RoundTrip(getRequest(t, "https://scout.example/export.csv", nil))
		require.NoError(t, err)
		_ = readBody(t, resp)
		transport.setOffline(true)

		// Act
		resp2, err := worker.RoundTrip(getRequest(t, "https://scout.example/export.csv", nil))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "content of /export.csv", readBody(t, resp2))
	})

	t.Run("Default class with nothing cached fails visibly", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		transport.setOffline(true)

		// Act
		_, err := worker.RoundTrip(getRequest(t, "https://scout.example/never-seen.csv", nil))

		// Assert
		assert.ErrorIs(t, err, errUnreachable)
	})

	t.Run("Non-GET requests pass through untouched", func(t *testing.T) {
		// Arrange
		worker, transport := installedWorker(t)
		transport.setOffline(true)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://scout.example/api/events", strings.NewReader(`{}`))
		require.NoError(t, err)

		// Act
		_, err = worker.RoundTrip(req)

		// Assert: the transport error propagates; no offline synthesis for writes.
		assert.ErrorIs(t, err, errUnreachable)
	})
}
