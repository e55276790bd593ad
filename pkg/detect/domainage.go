package detect

import (
	"context"
	"fmt"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

// Age thresholds differ by mode: a week-old domain behind a URL is almost
// always infrastructure spun up for a campaign, while email senders get a
// wider window because newsletters move providers.
const (
	urlAgeThresholdDays   = 7
	urlAgePoints          = 60
	emailAgeThresholdDays = 30
	emailAgePoints        = 50
)

// AgeResolver is the WHOIS seam, satisfied by netinfo.AgeLookup.
type AgeResolver interface {
	Age(domain string) (*netinfo.DomainAge, error)
}

// DomainAgeDetector flags recently registered domains.
type DomainAgeDetector struct {
	lookup AgeResolver
}

// NewDomainAgeDetector builds the detector.
func NewDomainAgeDetector(lookup AgeResolver) *DomainAgeDetector {
	return &DomainAgeDetector{lookup: lookup}
}

func (d *DomainAgeDetector) Name() string { return "domain_age" }

func (d *DomainAgeDetector) AppliesTo(Mode) bool { return true }

func (d *DomainAgeDetector) Detect(ctx context.Context, in *Input) ([]Signal, error) {
	domain := netinfo.RegistrableDomain(subjectHost(in))
	if domain == "" || netinfo.IsRawIP(domain) {
		return nil, nil
	}

	age, err := d.lookup.Age(domain)
	if err != nil {
		return nil, fmt.Errorf("domain age: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	threshold, points, severity := urlAgeThresholdDays, urlAgePoints, SeverityHigh
	if in.Mode == ModeEmail {
		// A sender domain younger than a month is about the strongest
		// spoofing evidence the email pipeline sees.
		threshold, points, severity = emailAgeThresholdDays, emailAgePoints, SeverityCritical
	}
	if age.AgeDays >= threshold {
		return nil, nil
	}

	sig := NewSignal(KindDomainAge, severity, points,
		fmt.Sprintf("domain %q registered %d days ago", domain, age.AgeDays)).
		WithDetail("domain", domain).
		WithDetail("age_days", age.AgeDays).
		WithDetail("created_at", age.CreatedAt).
		WithDetail("registrar", age.Registrar)
	return []Signal{sig}, nil
}
