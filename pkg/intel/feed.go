package intel

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelmark/phishmark/pkg/httputil"
)

// FeedLoader periodically pulls a newline-delimited feed of known-phish URLs
// into the feed cache. OpenPhish publishes its community feed in this shape.
type FeedLoader struct {
	feedURL string
	cache   FeedCache
	client  *http.Client
}

// NewFeedLoader builds a loader for the given feed URL and cache.
func NewFeedLoader(feedURL string, cache FeedCache) *FeedLoader {
	return &FeedLoader{
		feedURL: feedURL,
		cache:   cache,
		client:  httputil.FeedClient(),
	}
}

// Refresh downloads the feed and loads every entry into the cache.
// Returns the number of entries loaded.
func (f *FeedLoader) Refresh(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.feedURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed download: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed download: status %d", resp.StatusCode)
	}

	count := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := f.cache.Add(ctx, NormalizeURL(line)); err != nil {
			return count, fmt.Errorf("feed cache: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("feed read: %w", err)
	}

	log.Printf("[INFO] feed refreshed: %d entries from %s", count, f.feedURL)
	return count, nil
}

// Run refreshes the feed immediately and then on every tick until the
// context is canceled. Intended to run as a background goroutine.
func (f *FeedLoader) Run(ctx context.Context, interval time.Duration) {
	if _, err := f.Refresh(ctx); err != nil {
		log.Printf("[WARN] initial feed refresh failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.Refresh(ctx); err != nil {
				log.Printf("[WARN] feed refresh failed: %v", err)
			}
		}
	}
}

// RefreshInterval derives the feed refresh period from the cache TTL.
// Refreshing at half the TTL keeps entries alive across one missed or slow
// refresh; refreshing exactly at the TTL would leave an empty-cache window
// whenever a refresh runs late.
func RefreshInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

// NormalizeURL canonicalizes a URL for feed comparison: lowercase scheme and
// host, no trailing slash on bare roots.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, scheme) {
			rest := raw[len(scheme):]
			if i := strings.IndexAny(rest, "/?#"); i >= 0 {
				host := strings.ToLower(rest[:i])
				tail := rest[i:]
				if tail == "/" {
					tail = ""
				}
				return scheme + host + tail
			}
			return scheme + strings.ToLower(rest)
		}
	}
	return raw
}
