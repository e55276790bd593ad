package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/httputil"
)

// Service is a single external blacklist. Check returns whether the URL is a
// confirmed threat. Implementations treat upstream failures and non-2xx
// responses as "not confirmed" so one vendor outage cannot block verdicts.
type Service interface {
	Name() string
	Check(ctx context.Context, rawURL string) (bool, error)
}

// SafeBrowsing queries the Google Safe Browsing v4 threatMatches endpoint.
type SafeBrowsing struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewSafeBrowsing builds the service. Returns nil when no key is configured;
// the resolver skips nil services.
func NewSafeBrowsing(apiKey string) Service {
	if apiKey == "" {
		return nil
	}
	return &SafeBrowsing{
		apiKey:   apiKey,
		endpoint: "https://safebrowsing.googleapis.com/v4/threatMatches:find",
		client:   httputil.IntelClient(),
	}
}

func (s *SafeBrowsing) Name() string { return "safe_browsing" }

func (s *SafeBrowsing) Check(ctx context.Context, rawURL string) (bool, error) {
	payload := map[string]any{
		"client": map[string]string{
			"clientId":      "phishmark",
			"clientVersion": "1.0",
		},
		"threatInfo": map[string]any{
			"threatTypes":      []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"},
			"platformTypes":    []string{"ANY_PLATFORM"},
			"threatEntryTypes": []string{"URL"},
			"threatEntries":    []map[string]string{{"url": rawURL}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint+"?key="+url.QueryEscape(s.apiKey), bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("safe browsing: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[WARN] safe browsing returned status %d", resp.StatusCode)
		return false, nil
	}

	respBody, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return false, err
	}
	var parsed struct {
		Matches []json.RawMessage `json:"matches"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return false, err
	}
	return len(parsed.Matches) > 0, nil
}

// PhishTank queries the community PhishTank checkurl endpoint. Works without
// an API key at a lower rate limit.
type PhishTank struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewPhishTank builds the service.
func NewPhishTank(apiKey string) *PhishTank {
	return &PhishTank{
		apiKey:   apiKey,
		endpoint: "https://checkurl.phishtank.com/checkurl/",
		client:   httputil.IntelClient(),
	}
}

func (p *PhishTank) Name() string { return "phishtank" }

func (p *PhishTank) Check(ctx context.Context, rawURL string) (bool, error) {
	form := url.Values{}
	form.Set("url", rawURL)
	form.Set("format", "json")
	if p.apiKey != "" {
		form.Set("app_key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "phishmark/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("phishtank: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[WARN] phishtank returned status %d", resp.StatusCode)
		return false, nil
	}

	respBody, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return false, err
	}
	var parsed struct {
		Results struct {
			InDatabase bool `json:"in_database"`
			Valid      bool `json:"valid"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return false, err
	}
	return parsed.Results.InDatabase && parsed.Results.Valid, nil
}

// URLhaus queries the abuse.ch URLhaus lookup API.
type URLhaus struct {
	endpoint string
	client   *http.Client
}

// NewURLhaus builds the service against the given lookup endpoint.
func NewURLhaus(endpoint string) *URLhaus {
	if endpoint == "" {
		endpoint = "https://urlhaus-api.abuse.ch/v1/url/"
	}
	return &URLhaus{endpoint: endpoint, client: httputil.IntelClient()}
}

func (u *URLhaus) Name() string { return "urlhaus" }

func (u *URLhaus) Check(ctx context.Context, rawURL string) (bool, error) {
	form := url.Values{}
	form.Set("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, "POST", u.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("urlhaus: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[WARN] urlhaus returned status %d", resp.StatusCode)
		return false, nil
	}

	respBody, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return false, err
	}
	var parsed struct {
		QueryStatus string `json:"query_status"`
		URLStatus   string `json:"url_status"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return false, err
	}
	return parsed.QueryStatus == "ok" && parsed.URLStatus == "online", nil
}
