package detect

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

const homographPoints = 90

// HomographDetector flags hosts that abuse internationalized domain names
// to imitate ASCII brands: punycode labels and hostnames mixing Latin with
// Cyrillic or Greek script.
type HomographDetector struct{}

// NewHomographDetector builds the detector.
func NewHomographDetector() *HomographDetector {
	return &HomographDetector{}
}

func (d *HomographDetector) Name() string { return "homograph" }

func (d *HomographDetector) AppliesTo(Mode) bool { return true }

func (d *HomographDetector) Detect(_ context.Context, in *Input) ([]Signal, error) {
	host := subjectHost(in)
	if host == "" {
		return nil, nil
	}
	if sig, ok := homographSignal(host, homographPoints, SeverityCritical); ok {
		return []Signal{sig}, nil
	}
	return nil, nil
}

// homographSignal inspects one hostname for punycode labels or mixed-script
// spoofing. Shared between the host check and the email body-link scan,
// which weight their findings differently.
func homographSignal(host string, points int, severity Severity) (Signal, bool) {
	if strings.Contains(host, "xn--") {
		display := host
		if decoded, err := idna.Lookup.ToUnicode(host); err == nil {
			display = decoded
		}
		_, scripts := hasMixedScript(display)
		sig := NewSignal(KindHomograph, severity, points,
			fmt.Sprintf("host %q is punycode for %q", host, display)).
			WithDetail("decoded", display).
			WithDetail("mixed_scripts", scripts)
		return sig, true
	}

	if mixed, scripts := hasMixedScript(host); mixed {
		sig := NewSignal(KindHomograph, severity, points,
			fmt.Sprintf("host %q mixes %s characters to imitate a Latin domain", host, strings.Join(scripts, " and "))).
			WithDetail("mixed_scripts", scripts)
		return sig, true
	}
	return Signal{}, false
}

// hasMixedScript reports whether letters from more than one script appear in
// the hostname. Single-script non-Latin domains are legitimate; the mix is
// the attack. NFC normalization first, so combining sequences cannot hide a
// confusable.
func hasMixedScript(host string) (bool, []string) {
	seen := make(map[string]bool)
	for _, r := range norm.NFC.String(host) {
		if !unicode.IsLetter(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Latin, r):
			seen["Latin"] = true
		case unicode.Is(unicode.Cyrillic, r):
			seen["Cyrillic"] = true
		case unicode.Is(unicode.Greek, r):
			seen["Greek"] = true
		}
	}
	if len(seen) < 2 {
		return false, nil
	}
	scripts := make([]string, 0, len(seen))
	for _, name := range []string{"Latin", "Cyrillic", "Greek"} {
		if seen[name] {
			scripts = append(scripts, name)
		}
	}
	return true, scripts
}
