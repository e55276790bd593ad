package detect

import (
	"context"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

// Mode selects which scoring profile applies to the input
type Mode string

const (
	ModeURL   Mode = "url"
	ModeEmail Mode = "email"
)

// Input is the immutable view of one analysis request shared by every
// detector in the fan-out. URL fields are populated in both modes; email
// fields only in ModeEmail.
type Input struct {
	Mode Mode

	// URL analysis
	URL         string
	Host        string // lowercase hostname
	RegDomain   string // eTLD+1
	AnchorText  string // link text as displayed to the user, optional
	PageContext string // text surrounding the link, optional
	DOMSnippet  string // markup around the link, optional
	PageText    string // scraped page text, optional
	Screenshot  string // data URL, optional
	FaviconURL  string // optional, defaults to /favicon.ico on Host

	// Email analysis
	Subject      string
	Body         string
	RawHeaders   string
	FromAddr     string // address extracted from the From header
	ReturnPath   string // address extracted from Return-Path
	SenderDomain string
	Links        []string // URLs extracted from the body
}

// NewURLInput derives the host fields from a raw URL.
func NewURLInput(rawURL string) *Input {
	host := netinfo.Hostname(rawURL)
	return &Input{
		Mode:      ModeURL,
		URL:       rawURL,
		Host:      host,
		RegDomain: netinfo.RegistrableDomain(host),
	}
}

// NewEmailInput derives sender fields from parsed header values.
func NewEmailInput(subject, body, rawHeaders, fromAddr, returnPath string, links []string) *Input {
	return &Input{
		Mode:         ModeEmail,
		Subject:      subject,
		Body:         body,
		RawHeaders:   rawHeaders,
		FromAddr:     fromAddr,
		ReturnPath:   returnPath,
		SenderDomain: netinfo.SenderDomain(fromAddr),
		Links:        links,
	}
}

// Detector is one member of the fan-out. Detect returns the signals it
// found; an error marks the outcome failed and defers to the failure-mode
// policy. Detectors must honor ctx and never mutate the input.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in *Input) ([]Signal, error)
}

// Applicable lets a detector opt out of modes it has nothing to say about,
// keeping the engine's dispatch list static.
type Applicable interface {
	AppliesTo(mode Mode) bool
}
