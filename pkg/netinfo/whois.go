package netinfo

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	gocache "github.com/patrickmn/go-cache"
)

// DomainAge describes how long a domain has been registered. Phishing
// infrastructure is overwhelmingly registered days before use, so young
// registrations are strong evidence.
type DomainAge struct {
	Domain    string
	CreatedAt time.Time
	AgeDays   int
	Registrar string
}

// AgeLookup resolves domain registration age via WHOIS. Results are cached
// for 24h because registration dates do not move.
type AgeLookup struct {
	client  *whois.Client
	cache   *gocache.Cache
	mu      sync.Mutex
	timeout time.Duration
}

// NewAgeLookup builds a WHOIS age resolver with the given query timeout.
func NewAgeLookup(timeout time.Duration) *AgeLookup {
	c := whois.NewClient()
	c.SetTimeout(timeout)
	return &AgeLookup{
		client:  c,
		cache:   gocache.New(24*time.Hour, time.Hour),
		timeout: timeout,
	}
}

// Age looks up the registration age of a registrable domain. Returns an
// error when WHOIS is unreachable or the record carries no creation date;
// callers decide how a missing answer counts.
func (a *AgeLookup) Age(domain string) (*DomainAge, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("whois: empty domain")
	}

	if cached, ok := a.cache.Get(domain); ok {
		return cached.(*DomainAge), nil
	}

	a.mu.Lock()
	raw, err := a.client.Whois(domain)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("whois query for %s: %w", domain, err)
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("whois parse for %s: %w", domain, err)
	}

	created := parsed.Domain.CreatedDateInTime
	if created == nil {
		return nil, fmt.Errorf("whois record for %s has no creation date", domain)
	}

	age := &DomainAge{
		Domain:    domain,
		CreatedAt: *created,
		AgeDays:   int(time.Since(*created).Hours() / 24),
	}
	if parsed.Registrar != nil {
		age.Registrar = parsed.Registrar.Name
	}

	a.cache.Set(domain, age, gocache.DefaultExpiration)
	log.Printf("[INFO] whois: %s registered %s (%d days)", domain, age.CreatedAt.Format("2006-01-02"), age.AgeDays)
	return age, nil
}
