package shellcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultStaticExtensions is the allow-list of same-origin asset extensions
// served cache-first.
var DefaultStaticExtensions = []string{".png", ".jpg", ".svg", ".webp", ".ico", ".css", ".js"}

// DefaultAppShell is the fixed asset list pre-cached at install.
var DefaultAppShell = []string{"/", "/index.html", "/manifest.json", "/icon-192.png", "/icon-512.png"}

// WorkerConfig holds configuration for an interception Worker.
type WorkerConfig struct {
	// Version tags the cache generation this worker owns. Bumping it on
	// deploy is the cache invalidation mechanism.
	Version string
	// Origin is the scheme://host of the app, used for same-origin checks
	// and for resolving app-shell paths at install.
	Origin string
	// AppShell lists the paths pre-cached at install. Defaults to DefaultAppShell.
	AppShell []string
	// ShellEntry is the main HTML entry served as the offline fallback.
	// Defaults to "/index.html".
	ShellEntry string
	// StaticExtensions overrides DefaultStaticExtensions when non-empty.
	StaticExtensions []string
}

// Worker answers requests with a strategy chosen by request class, reading
// and writing the cache generation tagged with its version. One worker
// instance serves one version; a deploy creates a new worker whose Activate
// sweeps every older generation.
type Worker struct {
	version    string
	origin     *url.URL
	appShell   []string
	shellEntry string
	extensions []string
	transport  http.RoundTripper
	store      GenerationStore
	logger     zerolog.Logger
}

// NewWorker creates a Worker over the given generation store and wrapped
// transport. A nil transport defaults to http.DefaultTransport.
func NewWorker(cfg *WorkerConfig, store GenerationStore, transport http.RoundTripper, logger zerolog.Logger) (*Worker, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("worker version cannot be empty")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid worker origin %q", cfg.Origin)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	appShell := cfg.AppShell
	if len(appShell) == 0 {
		appShell = DefaultAppShell
	}
	shellEntry := cfg.ShellEntry
	if shellEntry == "" {
		shellEntry = "/index.html"
	}
	extensions := cfg.StaticExtensions
	if len(extensions) == 0 {
		extensions = DefaultStaticExtensions
	}

	return &Worker{
		version:    cfg.Version,
		origin:     origin,
		appShell:   appShell,
		shellEntry: shellEntry,
		extensions: extensions,
		transport:  transport,
		store:      store,
		logger:     logger.With().Str("component", "Worker").Str("version", cfg.Version).Logger(),
	}, nil
}

// Version returns the generation tag this worker owns.
func (w *Worker) Version() string {
	return w.version
}

// Install pre-populates the worker's generation with the app-shell assets,
// fetched through the wrapped transport. Any shell asset that cannot be
// fetched and stored fails the install; a worker whose shell is incomplete
// cannot guarantee the offline fallback.
func (w *Worker) Install(ctx context.Context) error {
	for _, path := range w.appShell {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.originURL(path), nil)
		if err != nil {
			return fmt.Errorf("failed to build shell request for %s: %w", path, err)
		}
		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("failed to fetch shell asset %s: %w", path, err)
		}
		snapshot, err := SnapshotResponse(resp)
		closeBody(resp)
		if err != nil {
			return fmt.Errorf("failed to snapshot shell asset %s: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("shell asset %s returned status %d", path, resp.StatusCode)
		}
		if err := w.store.Put(ctx, w.version, RequestKey(req), snapshot); err != nil {
			return fmt.Errorf("failed to store shell asset %s: %w", path, err)
		}
	}
	w.logger.Info().Int("assets", len(w.appShell)).Msg("App shell installed.")
	return nil
}

// Activate deletes every generation whose version tag differs from this
// worker's, leaving it the sole owner of the cache.
func (w *Worker) Activate(ctx context.Context) error {
	versions, err := w.store.Versions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list generations: %w", err)
	}
	for _, version := range versions {
		if version == w.version {
			continue
		}
		if err := w.store.Delete(ctx, version); err != nil {
			return fmt.Errorf("failed to delete stale generation %s: %w", version, err)
		}
		w.logger.Info().Str("stale_version", version).Msg("Deleted stale cache generation.")
	}
	return nil
}

// RoundTrip classifies r and serves it with the matching strategy:
//
//  1. non-GET or non-http(s): passthrough, untouched.
//  2. /api/ paths: network-only; a transport failure synthesizes a
//     structured offline response so callers can tell "no network" from
//     "server said no".
//  3. navigations: network-first, falling back to the cached shell entry.
//  4. same-origin static assets: cache-first with opportunistic fill,
//     falling back to the shell entry when nothing is cached.
//  5. everything else: network-first with exact-key cache fallback.
func (w *Worker) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method != http.MethodGet || (r.URL.Scheme != "http" && r.URL.Scheme != "https") {
		return w.transport.RoundTrip(r)
	}

	ctx := r.Context()

	if strings.HasPrefix(r.URL.Path, "/api/") {
		resp, err := w.transport.RoundTrip(r)
		if err != nil {
			w.logger.Debug().Err(err).Str("url", r.URL.String()).Msg("API call failed; synthesizing offline response.")
			return offlineResponse(r), nil
		}
		return resp, nil
	}

	if isNavigation(r) {
		resp, err := w.transport.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		w.logger.Debug().Err(err).Str("url", r.URL.String()).Msg("Navigation fetch failed; serving shell entry.")
		return w.shellFallback(ctx, r, err)
	}

	if w.isStatic(r) {
		if snapshot, err := w.store.Match(ctx, w.version, RequestKey(r)); err == nil {
			return snapshot.Response(r)
		}
		resp, err := w.transport.RoundTrip(r)
		if err != nil {
			return w.shellFallback(ctx, r, err)
		}
		w.cacheResponse(ctx, r, resp)
		return resp, nil
	}

	resp, err := w.transport.RoundTrip(r)
	if err == nil {
		w.cacheResponse(ctx, r, resp)
		return resp, nil
	}
	if snapshot, matchErr := w.store.Match(ctx, w.version, RequestKey(r)); matchErr == nil {
		w.logger.Debug().Str("url", r.URL.String()).Msg("Network failed; serving cached response.")
		return snapshot.Response(r)
	}
	return nil, err
}

// cacheResponse opportunistically snapshots a cacheable response into the
// active generation. Failures are logged and swallowed; caching is an
// optimization, not a correctness requirement.
func (w *Worker) cacheResponse(ctx context.Context, r *http.Request, resp *http.Response) {
	if !w.cacheable(r, resp) {
		return
	}
	snapshot, err := SnapshotResponse(resp)
	if err != nil {
		w.logger.Warn().Err(err).Str("url", r.URL.String()).Msg("Failed to snapshot response for caching.")
		return
	}
	if err := w.store.Put(ctx, w.version, RequestKey(r), snapshot); err != nil {
		w.logger.Warn().Err(err).Str("url", r.URL.String()).Msg("Failed to write response to cache generation.")
	}
}

// cacheable reports whether a response may enter the cache: successful and
// same-origin. Opaque cross-origin responses are never stored.
func (w *Worker) cacheable(r *http.Request, resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299 && w.sameOrigin(r.URL)
}

func (w *Worker) sameOrigin(u *url.URL) bool {
	return u.Scheme == w.origin.Scheme && strings.EqualFold(u.Host, w.origin.Host)
}

func (w *Worker) isStatic(r *http.Request) bool {
	if !w.sameOrigin(r.URL) {
		return false
	}
	if r.URL.Path == "/" {
		return true
	}
	for _, ext := range w.extensions {
		if strings.HasSuffix(r.URL.Path, ext) {
			return true
		}
	}
	return false
}

// shellFallback serves the cached main HTML entry, or returns cause when the
// shell itself is missing from the generation.
func (w *Worker) shellFallback(ctx context.Context, r *http.Request, cause error) (*http.Response, error) {
	key := http.MethodGet + " " + w.originURL(w.shellEntry)
	snapshot, err := w.store.Match(ctx, w.version, key)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Shell entry missing from cache generation.")
		return nil, cause
	}
	return snapshot.Response(r)
}

func (w *Worker) originURL(path string) string {
	return w.origin.Scheme + "://" + w.origin.Host + path
}

// isNavigation reports whether r is a full-page load. Browsers tag these
// with Sec-Fetch-Mode: navigate; the Accept check covers clients that don't.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/html")
}

// offlineResponse synthesizes the structured offline payload for failed API
// calls.
func offlineResponse(r *http.Request) *http.Response {
	const body = `{"error":"offline","offline":true}`
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

func closeBody(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
