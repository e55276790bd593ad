package intel

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

// Status is the blacklist layer's answer for one URL.
type Status string

const (
	StatusWhitelisted   Status = "WHITELISTED"    // trusted domain, analysis short-circuits
	StatusClean         Status = "CLEAN"          // no service confirmed a threat
	StatusVerifiedPhish Status = "VERIFIED_PHISH" // at least one authority confirmed
)

// Verdict is the aggregate blacklist answer across all sources.
type Verdict struct {
	IsMalicious bool
	Status      Status
	Sources     map[string]bool // per-service confirmation, including "feed"
}

// Resolver fans a URL out to every configured blacklist source and ORs the
// answers. One confirmed hit is enough; failures never block.
type Resolver struct {
	trust    *TrustStore
	cache    FeedCache
	services []Service
}

// NewResolver builds a resolver. Nil services (unconfigured keys) are
// filtered out here so callers can pass constructors directly.
func NewResolver(trust *TrustStore, cache FeedCache, services ...Service) *Resolver {
	r := &Resolver{trust: trust, cache: cache}
	for _, s := range services {
		if s != nil {
			r.services = append(r.services, s)
		}
	}
	return r
}

// ServiceCount returns the number of live blacklist services.
func (r *Resolver) ServiceCount() int {
	return len(r.services)
}

// Resolve checks a URL against the whitelist, the cached feed, and every
// blacklist service concurrently.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Verdict {
	v := Verdict{Status: StatusClean, Sources: make(map[string]bool)}

	host := netinfo.Hostname(rawURL)
	if r.trust != nil && r.trust.IsWhitelisted(host) {
		v.Status = StatusWhitelisted
		return v
	}

	if r.cache != nil {
		hit, err := r.cache.Contains(ctx, NormalizeURL(rawURL))
		if err != nil {
			log.Printf("[WARN] feed cache lookup failed: %v", err)
		} else if hit {
			v.Sources["feed"] = true
			v.IsMalicious = true
			v.Status = StatusVerifiedPhish
		}
	}

	if len(r.services) == 0 {
		return v
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range r.services {
		g.Go(func() error {
			hit, err := svc.Check(gctx, rawURL)
			if err != nil {
				log.Printf("[WARN] blacklist %s failed: %v", svc.Name(), err)
				return nil
			}
			mu.Lock()
			v.Sources[svc.Name()] = hit
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, hit := range v.Sources {
		if hit {
			v.IsMalicious = true
			v.Status = StatusVerifiedPhish
			break
		}
	}
	return v
}
