// Package httputil provides shared HTTP utilities with connection pooling
// and safe response handling for the phishmark gateway.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response bodies.
// Threat-intel feeds and fetched pages are untrusted input; cap them.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with optimized connection pooling.
// This is safe for concurrent use and dramatically improves performance
// by reusing TCP connections across requests.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for different operation types.
type TimeoutTier int

const (
	// TierIntel for threat-intel lookups and favicon fetches (3s).
	// A slow blocklist service must never hold up a verdict.
	TierIntel TimeoutTier = iota
	// TierFeed for bulk feed downloads (30s)
	TierFeed
	// TierReason for LLM/vision reasoning calls that may take longer (60s)
	TierReason
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierIntel:  3 * time.Second,
	TierFeed:   30 * time.Second,
	TierReason: 60 * time.Second,
}

// Singleton clients for each timeout tier - initialized once, reused everywhere.
var (
	clientIntel  *http.Client
	clientFeed   *http.Client
	clientReason *http.Client
	clientOnce   sync.Once
)

func initClients() {
	clientIntel = &http.Client{
		Timeout:   timeoutDurations[TierIntel],
		Transport: sharedTransport,
	}
	clientFeed = &http.Client{
		Timeout:   timeoutDurations[TierFeed],
		Transport: sharedTransport,
	}
	clientReason = &http.Client{
		Timeout:   timeoutDurations[TierReason],
		Transport: sharedTransport,
	}
}

// Client returns a shared HTTP client for the given timeout tier.
// These clients share a connection pool and should be used instead of
// creating new http.Client instances per request.
//
// Usage:
//
//	client := httputil.Client(httputil.TierIntel)
//	resp, err := client.Post(url, "application/json", body)
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierIntel:
		return clientIntel
	case TierFeed:
		return clientFeed
	case TierReason:
		return clientReason
	default:
		return clientFeed
	}
}

// IntelClient returns a client with 3s timeout (blocklist lookups, favicons).
func IntelClient() *http.Client {
	return Client(TierIntel)
}

// FeedClient returns a client with 30s timeout (bulk feed downloads).
func FeedClient() *http.Client {
	return Client(TierFeed)
}

// ReasonClient returns a client with 60s timeout (LLM/vision calls).
func ReasonClient() *http.Client {
	return Client(TierReason)
}

// ReadResponseBody safely reads an HTTP response body with size limits.
// This prevents OOM from a malicious or compromised upstream.
//
// Usage:
//
//	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadErrorBody reads the response body for error messages with a reasonable limit.
// Uses a smaller limit (1MB) since error messages shouldn't be large.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	const maxErrorSize = 1 * 1024 * 1024 // 1MB for error messages
	return io.ReadAll(io.LimitReader(r, maxErrorSize))
}

// DrainAndClose properly drains and closes an HTTP response body.
// This ensures connection reuse in the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
