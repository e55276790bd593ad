package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/embed"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

// brandSimilarityThreshold is the embedding similarity above which a host
// name counts as imitating a protected brand.
const brandSimilarityThreshold = 0.7

const impersonationPoints = 60

// ImpersonationDetector flags hosts that trade on a protected brand's name
// without being the brand. The cheap lexical substring check runs first;
// the embedding similarity check catches misspellings the substring misses.
type ImpersonationDetector struct {
	trust *intel.TrustStore
	index *embed.BrandIndex // nil disables the semantic tier
}

// NewImpersonationDetector builds the detector. index may be nil.
func NewImpersonationDetector(trust *intel.TrustStore, index *embed.BrandIndex) *ImpersonationDetector {
	return &ImpersonationDetector{trust: trust, index: index}
}

func (d *ImpersonationDetector) Name() string { return "impersonation" }

func (d *ImpersonationDetector) AppliesTo(Mode) bool { return true }

func (d *ImpersonationDetector) Detect(ctx context.Context, in *Input) ([]Signal, error) {
	host := subjectHost(in)
	if host == "" || netinfo.IsRawIP(host) {
		return nil, nil
	}

	// The brand's own domains never impersonate the brand.
	if _, legit := d.trust.BrandForDomain(host); legit {
		return nil, nil
	}

	if entry, ok := d.trust.BrandMentioned(host); ok {
		sig := NewSignal(KindImpersonation, SeverityCritical, impersonationPoints,
			fmt.Sprintf("host %q uses the %s brand name but is not a %s domain", host, entry.Brand, entry.Brand)).
			WithDetail("brand", entry.Brand).
			WithDetail("legitimate_domains", entry.Domains).
			WithDetail("method", "lexical")
		return []Signal{sig}, nil
	}

	if d.index == nil || !d.index.IsReady() {
		return nil, nil
	}

	// Attackers put the brand in the visible link text at least as often as
	// in the hostname, so anchor text is the better similarity query when
	// the caller supplied it.
	query := embed.QueryText(host)
	if in.AnchorText != "" {
		query = in.AnchorText
	}
	match, err := d.index.Closest(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("brand similarity: %w", err)
	}
	if match == nil || match.Similarity <= brandSimilarityThreshold {
		return nil, nil
	}
	reg := netinfo.RegistrableDomain(host)
	for _, legit := range match.Domains {
		if reg == strings.ToLower(legit) {
			return nil, nil
		}
	}

	sig := NewSignal(KindImpersonation, SeverityHigh, impersonationPoints,
		fmt.Sprintf("host %q closely resembles the %s brand (similarity %.2f)", host, match.Brand, match.Similarity)).
		WithDetail("brand", match.Brand).
		WithDetail("similarity", match.Similarity).
		WithDetail("method", "semantic")
	return []Signal{sig}, nil
}

// subjectHost is the host under judgment: the URL host in URL mode, the
// sender domain in email mode.
func subjectHost(in *Input) string {
	if in.Mode == ModeEmail {
		return in.SenderDomain
	}
	return in.Host
}
