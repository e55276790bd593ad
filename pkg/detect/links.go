package detect

import (
	"context"
	"fmt"
	"sync"

	"github.com/sentinelmark/phishmark/pkg/httputil"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

const (
	maliciousLinkPoints = 50
	// A spoofed hostname buried in a body link is weaker evidence than a
	// spoofed sender, so it contributes less than the host-level check.
	linkHomographPoints = 40
)

// BlacklistResolver is the threat-intel seam, satisfied by intel.Resolver.
type BlacklistResolver interface {
	Resolve(ctx context.Context, rawURL string) intel.Verdict
}

// LinkScanDetector inspects every URL in an email body: each link host goes
// through the homograph check locally, and each full link through the
// blacklist layer, bounded by a semaphore so one link-stuffed message cannot
// exhaust the threat-intel rate limits.
type LinkScanDetector struct {
	resolver BlacklistResolver
	sem      *httputil.Semaphore
}

// NewLinkScanDetector builds the detector with the given concurrency bound.
func NewLinkScanDetector(resolver BlacklistResolver, maxConcurrent int) *LinkScanDetector {
	return &LinkScanDetector{
		resolver: resolver,
		sem:      httputil.NewSemaphore(maxConcurrent),
	}
}

func (d *LinkScanDetector) Name() string { return "link_scan" }

func (d *LinkScanDetector) AppliesTo(mode Mode) bool { return mode == ModeEmail }

func (d *LinkScanDetector) Detect(ctx context.Context, in *Input) ([]Signal, error) {
	if len(in.Links) == 0 {
		return nil, nil
	}

	type hit struct {
		url     string
		verdict intel.Verdict
	}
	hits := make([]*hit, len(in.Links))

	var wg sync.WaitGroup
	for i, link := range in.Links {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.sem.Acquire(ctx); err != nil {
				return
			}
			defer d.sem.Release()
			v := d.resolver.Resolve(ctx, link)
			if v.IsMalicious {
				hits[i] = &hit{url: link, verdict: v}
			}
		}()
	}
	wg.Wait()

	// Report findings in body order so identical emails produce identical
	// output. Per link: the homograph finding first, then the intel hit.
	var sigs []Signal
	for i, link := range in.Links {
		if sig, ok := homographSignal(netinfo.Hostname(link), linkHomographPoints, SeverityHigh); ok {
			sigs = append(sigs, sig.WithDetail("url", link))
		}
		if h := hits[i]; h != nil {
			sigs = append(sigs, NewSignal(KindThreatIntel, SeverityCritical, maliciousLinkPoints,
				fmt.Sprintf("body link %q is a confirmed phishing URL", h.url)).
				WithDetail("url", h.url).
				WithDetail("sources", h.verdict.Sources))
		}
	}
	return sigs, nil
}
