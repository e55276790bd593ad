package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

const rawIPPoints = 80

// RawIPDetector flags URLs served off a bare IP address. No consumer brand
// asks users to log in at a literal address, and attackers use them to dodge
// domain-reputation systems.
type RawIPDetector struct{}

// NewRawIPDetector builds the detector.
func NewRawIPDetector() *RawIPDetector {
	return &RawIPDetector{}
}

func (d *RawIPDetector) Name() string { return "raw_ip" }

func (d *RawIPDetector) AppliesTo(mode Mode) bool { return mode == ModeURL }

func (d *RawIPDetector) Detect(_ context.Context, in *Input) ([]Signal, error) {
	if in.Host == "" {
		return nil, nil
	}
	if !netinfo.IsRawIP(in.Host) && !isAllDigitHost(in.Host) {
		return nil, nil
	}

	sig := NewSignal(KindIPAddress, SeverityHigh, rawIPPoints,
		fmt.Sprintf("URL points at raw address %q instead of a hostname", in.Host)).
		WithDetail("host", in.Host)
	return []Signal{sig}, nil
}

// isAllDigitHost catches decimal and malformed numeric hosts like
// "3232235781" or "192.168.1" that net.ParseIP rejects but browsers may
// still resolve as addresses.
func isAllDigitHost(host string) bool {
	stripped := strings.ReplaceAll(host, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
