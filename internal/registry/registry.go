// Package registry fetches external module source from a registry mirror.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMirrorURL is the registry mirror that serves published
	// package sources as fetchable ES module URLs.
	DefaultMirrorURL = "https://esm.sh"

	// LatestVersion is requested when a package has no pinned version.
	LatestVersion = "latest"

	// esTarget selects the language level of the served module variant.
	esTarget = "es2022"

	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "jack-bundler/1.0"
)

// SplitBareSpecifier splits a bare import specifier into package name and
// subpath. The package name is the first path segment, or the first two
// joined when the specifier is scoped ("@scope/pkg/sub" -> "@scope/pkg",
// "sub").
func SplitBareSpecifier(spec string) (pkg, subpath string) {
	parts := strings.Split(spec, "/")
	n := 1
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		n = 2
	}
	pkg = strings.Join(parts[:n], "/")
	subpath = strings.Join(parts[n:], "/")
	return pkg, subpath
}

// Mirror builds module URLs for a registry mirror host.
type Mirror struct {
	base *url.URL
}

// NewMirror parses the mirror base URL.
func NewMirror(rawURL string) (*Mirror, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry mirror URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("registry mirror URL %q must be absolute", rawURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Mirror{base: u}, nil
}

// ModuleURL returns the fully qualified URL serving the ES-module variant
// of pkg at version, optionally narrowed to a subpath inside the package.
func (m *Mirror) ModuleURL(pkg, version, subpath string) string {
	u := *m.base
	u.Path = m.base.Path + "/" + pkg + "@" + version
	if subpath != "" {
		u.Path += "/" + subpath
	}
	u.RawQuery = "target=" + esTarget
	return u.String()
}

// Resolve resolves a reference (relative or absolute-path) against a
// previously resolved module URL on this mirror.
func (m *Mirror) Resolve(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid specifier %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}

// ModuleCache memoizes fetched module text by resolved URL for the
// duration of one build. The bundler resolves imports concurrently, so
// in-flight fetches for the same URL are collapsed with singleflight.
// A cache must never be shared across builds.
type ModuleCache struct {
	group   singleflight.Group
	mu      sync.Mutex
	modules map[string]string
}

// NewModuleCache creates an empty per-build cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{modules: make(map[string]string)}
}

func (c *ModuleCache) getOrFetch(moduleURL string, fetch func() (string, error)) (string, error) {
	text, err, _ := c.group.Do(moduleURL, func() (interface{}, error) {
		c.mu.Lock()
		cached, ok := c.modules[moduleURL]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		fetched, err := fetch()
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.modules[moduleURL] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return "", err
	}
	return text.(string), nil
}

// Fetcher retrieves module text over HTTP with a bounded timeout and an
// identifying client header, memoized through a per-build ModuleCache.
type Fetcher struct {
	client    *http.Client
	cache     *ModuleCache
	userAgent string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for module fetches.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithFetchTimeout bounds each module fetch.
func WithFetchTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client.Timeout = timeout }
}

// NewFetcher creates a fetcher backed by the given per-build cache.
func NewFetcher(cache *ModuleCache, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: defaultFetchTimeout},
		cache:     cache,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the module text served at moduleURL. Repeat fetches of
// the same URL within a build hit the cache. Network and non-2xx failures
// come back as errors naming the URL, not as crashes.
func (f *Fetcher) Fetch(ctx context.Context, moduleURL string) (string, error) {
	return f.cache.getOrFetch(moduleURL, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, moduleURL, nil)
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", moduleURL, err)
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetching %s: %w", moduleURL, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("fetching %s: unexpected status %d", moduleURL, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", moduleURL, err)
		}
		if len(body) == 0 {
			return "", fmt.Errorf("fetching %s: empty module body", moduleURL)
		}

		log.Debug().Str("url", moduleURL).Int("bytes", len(body)).Msg("Fetched remote module")
		return string(body), nil
	})
}
