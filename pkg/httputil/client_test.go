package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientSingleton(t *testing.T) {
	c1 := Client(TierIntel)
	c2 := Client(TierIntel)
	if c1 != c2 {
		t.Error("Client() should return the same instance for same tier")
	}

	if IntelClient() == ReasonClient() {
		t.Error("Different tiers should return different clients")
	}
}

func TestClientTimeouts(t *testing.T) {
	tests := []struct {
		tier    TimeoutTier
		want    time.Duration
		getFunc func() *http.Client
	}{
		{TierIntel, 3 * time.Second, IntelClient},
		{TierFeed, 30 * time.Second, FeedClient},
		{TierReason, 60 * time.Second, ReasonClient},
	}

	for _, tt := range tests {
		c := tt.getFunc()
		if c.Timeout != tt.want {
			t.Errorf("Tier %d: got timeout %v, want %v", tt.tier, c.Timeout, tt.want)
		}
	}
}

func TestUnknownTierFallsBackToFeed(t *testing.T) {
	if Client(TimeoutTier(99)) != FeedClient() {
		t.Error("unknown tier should fall back to the feed client")
	}
}

func TestReadResponseBody(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxSize int64
		wantLen int
	}{
		{name: "normal read", input: "clean", maxSize: 1024, wantLen: 5},
		{name: "truncated read", input: strings.Repeat("x", 1000), maxSize: 100, wantLen: 100},
		{name: "default max size", input: "feed", maxSize: 0, wantLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadResponseBody(strings.NewReader(tt.input), tt.maxSize)
			if err != nil {
				t.Fatalf("ReadResponseBody() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ReadResponseBody() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestReadErrorBody(t *testing.T) {
	largeError := strings.Repeat("upstream error ", 100000) // ~1.4MB
	got, err := ReadErrorBody(strings.NewReader(largeError))
	if err != nil {
		t.Fatalf("ReadErrorBody() error = %v", err)
	}
	if len(got) > 1024*1024 {
		t.Errorf("ReadErrorBody() should truncate to 1MB, got %d bytes", len(got))
	}
}

func TestDrainAndClose(t *testing.T) {
	r := &trackingReader{Reader: strings.NewReader("feed line one\nfeed line two")}
	DrainAndClose(io.NopCloser(r))
	if !r.fullyRead {
		t.Error("DrainAndClose should fully drain the body")
	}

	// Must not panic on nil.
	DrainAndClose(nil)
}

type trackingReader struct {
	io.Reader
	fullyRead bool
}

func (r *trackingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	if err == io.EOF {
		r.fullyRead = true
	}
	return
}

func TestClientConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := IntelClient()
	for i := range 5 {
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
		DrainAndClose(resp.Body)
	}
}
