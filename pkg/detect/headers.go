package detect

import (
	"context"
	"fmt"

	"github.com/sentinelmark/phishmark/pkg/lexicon"
	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

const headerMismatchPoints = 40

// HeaderForensicsDetector compares the visible From address against the
// envelope Return-Path and checks for authentication result markers. A
// mismatched envelope is the classic spoofed-sender fingerprint.
type HeaderForensicsDetector struct{}

// NewHeaderForensicsDetector builds the detector.
func NewHeaderForensicsDetector() *HeaderForensicsDetector {
	return &HeaderForensicsDetector{}
}

func (d *HeaderForensicsDetector) Name() string { return "header_forensics" }

func (d *HeaderForensicsDetector) AppliesTo(mode Mode) bool { return mode == ModeEmail }

func (d *HeaderForensicsDetector) Detect(_ context.Context, in *Input) ([]Signal, error) {
	if in.RawHeaders == "" {
		return nil, nil
	}

	var sigs []Signal

	fromDomain := netinfo.RegistrableDomain(netinfo.SenderDomain(in.FromAddr))
	returnDomain := netinfo.RegistrableDomain(netinfo.SenderDomain(in.ReturnPath))
	if fromDomain != "" && returnDomain != "" && fromDomain != returnDomain {
		sigs = append(sigs, NewSignal(KindHeaderForensics, SeverityHigh, headerMismatchPoints,
			fmt.Sprintf("Return-Path domain %q does not match From domain %q", returnDomain, fromDomain)).
			WithDetail("from_domain", fromDomain).
			WithDetail("return_path_domain", returnDomain))
	}

	if !lexicon.HasSPFPass(in.RawHeaders) && !lexicon.HasDKIMPass(in.RawHeaders) {
		sigs = append(sigs, NewSignal(KindHeaderForensics, SeverityInfo, 0,
			"no passing SPF or DKIM authentication markers in headers"))
	}

	if hops := lexicon.ReceivedChain(in.RawHeaders); len(hops) > 0 {
		sigs = append(sigs, NewSignal(KindHeaderForensics, SeverityInfo, 0,
			fmt.Sprintf("message traversed %d relay hops", len(hops))).
			WithDetail("received_chain", hops))
	}

	return sigs, nil
}
