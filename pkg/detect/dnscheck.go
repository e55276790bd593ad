package detect

import (
	"context"
	"fmt"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

const noMXPoints = 30

// RecordResolver is the DNS seam, satisfied by netinfo.RecordLookup.
type RecordResolver interface {
	Lookup(ctx context.Context, domain string) netinfo.MailRecords
}

// DNSCheckDetector flags sender domains with no mail infrastructure. A
// domain that sends email but cannot receive it is a strong spoofing tell.
type DNSCheckDetector struct {
	resolver RecordResolver
}

// NewDNSCheckDetector builds the detector.
func NewDNSCheckDetector(resolver RecordResolver) *DNSCheckDetector {
	return &DNSCheckDetector{resolver: resolver}
}

func (d *DNSCheckDetector) Name() string { return "dns_check" }

func (d *DNSCheckDetector) AppliesTo(mode Mode) bool { return mode == ModeEmail }

func (d *DNSCheckDetector) Detect(ctx context.Context, in *Input) ([]Signal, error) {
	domain := netinfo.RegistrableDomain(in.SenderDomain)
	if domain == "" {
		return nil, nil
	}

	rec := d.resolver.Lookup(ctx, domain)
	if !rec.Queried {
		return nil, fmt.Errorf("dns lookup for %s did not complete", domain)
	}

	var sigs []Signal
	if len(rec.MX) == 0 {
		sigs = append(sigs, NewSignal(KindDNSCheck, SeverityHigh, noMXPoints,
			fmt.Sprintf("sender domain %q has no MX records", domain)).
			WithDetail("domain", domain))
	}
	if !rec.HasSPF {
		sigs = append(sigs, NewSignal(KindDNSCheck, SeverityInfo, 0,
			fmt.Sprintf("sender domain %q publishes no SPF policy", domain)).
			WithDetail("domain", domain))
	}
	return sigs, nil
}
