package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrUnexpectedStatus is returned when a feed answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

const defaultFetchTimeout = 15 * time.Second

// cacheEntry holds validators and the body of the last 200 response.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads ICS feeds, revalidating with ETag and Last-Modified so
// repeated runs in one process do not re-download unchanged feeds.
type Fetcher struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewFetcher creates a Fetcher. A nil client gets a 15s timeout.
func NewFetcher(logger *slog.Logger, client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		log:       logger.With("adapter", "ics_fetch"),
		cache:     make(map[string]cacheEntry),
	}
}

// Fetch returns the feed body at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("fetch: empty url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	cached, hasCached := f.cached(url)
	if hasCached {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && hasCached:
		f.log.Debug("feed not modified", slog.String("url", redactURL(url)))
		return cached.body, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: read body: %w", redactURL(url), err)
		}
		f.store(url, cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		})
		f.log.Debug("feed fetched",
			slog.String("url", redactURL(url)),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(body)),
		)
		return body, nil

	default:
		return nil, fmt.Errorf("fetch %s: %w %d", redactURL(url), ErrUnexpectedStatus, resp.StatusCode)
	}
}

func (f *Fetcher) cached(url string) (cacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.cache[url]
	return e, ok
}

func (f *Fetcher) store(url string, e cacheEntry) {
	if e.etag == "" && e.lastModified == "" {
		return
	}
	f.mu.Lock()
	f.cache[url] = e
	f.mu.Unlock()
}

// redactURL keeps only scheme and host; private feed URLs often embed
// tokens in the path or query.
func redactURL(u string) string {
	const redacted = "/...(redacted)"

	_, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "ics://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	return u[:len(u)-len(rest)] + host + redacted
}
