// Package lexicon provides a centralized, high-performance pattern registry
// for phishing detection. All regex patterns are compiled once at package init
// and shared across detectors.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - DRY: Single source of truth for forensic patterns
// - CATEGORIZED: Patterns organized by category for targeted scans
package lexicon

import (
	"regexp"
	"sync"
)

// Category represents a forensic pattern category
type Category string

const (
	CategoryHeaderField Category = "header_field" // Email header extraction
	CategoryAuthMarker  Category = "auth_marker"  // SPF/DKIM result markers
	CategoryLinkExtract Category = "link_extract" // URLs embedded in text
)

// Pattern holds a compiled regex with metadata
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Category    Category       // Forensic category
	Description string         // What this pattern extracts or detects
}

// Registry holds all compiled patterns, organized by category
type Registry struct {
	byCategory map[Category][]*Pattern
	byName     map[string]*Pattern
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		byName:     make(map[string]*Pattern),
	}

	r.registerHeaderPatterns()
	r.registerLinkPatterns()

	return r
}

func (r *Registry) register(name, pattern string, category Category, description string) {
	p := &Pattern{
		Name:        name,
		Regex:       regexp.MustCompile(pattern),
		Category:    category,
		Description: description,
	}
	r.byCategory[category] = append(r.byCategory[category], p)
	r.byName[name] = p
}

func (r *Registry) registerHeaderPatterns() {
	r.register("from", `(?im)^From:\s*(.*?)(?:\r?\n|$)`,
		CategoryHeaderField, "From header line")
	r.register("return_path", `(?im)^Return-Path:\s*(.*?)(?:\r?\n|$)`,
		CategoryHeaderField, "Return-Path header line")
	r.register("received_from", `(?im)^Received:\s*from\s+(.*?)(?:\r?\n|$)`,
		CategoryHeaderField, "Received hops, outermost first")
	r.register("angle_addr", `<(.+?)>`,
		CategoryHeaderField, "Address inside Name <addr> form")
	r.register("spf_ok", `(?i)spf=(pass|neutral)`,
		CategoryAuthMarker, "SPF authentication passed or neutral")
	r.register("dkim_ok", `(?i)dkim=pass`,
		CategoryAuthMarker, "DKIM signature verified")
}

func (r *Registry) registerLinkPatterns() {
	r.register("body_url", `https?://[^\s<>"]+|www\.[^\s<>"]+`,
		CategoryLinkExtract, "HTTP(S) and schemeless www links in message bodies")
}

// Lookup returns the named pattern, or nil if not registered.
func (r *Registry) Lookup(name string) *Pattern {
	return r.byName[name]
}

// ByCategory returns all patterns for a category (never nil).
func (r *Registry) ByCategory(cat Category) []*Pattern {
	return r.byCategory[cat]
}

// Convenience accessors used on every email request.

// FromHeader extracts the From header value, or "" if absent.
func FromHeader(raw string) string {
	return firstGroup(Get().Lookup("from"), raw)
}

// ReturnPathHeader extracts the Return-Path header value, or "" if absent.
func ReturnPathHeader(raw string) string {
	return firstGroup(Get().Lookup("return_path"), raw)
}

// ReceivedChain extracts every "Received: from" hop, outermost first.
func ReceivedChain(raw string) []string {
	p := Get().Lookup("received_from")
	var hops []string
	for _, m := range p.Regex.FindAllStringSubmatch(raw, -1) {
		if len(m) > 1 {
			hops = append(hops, trimSpace(m[1]))
		}
	}
	return hops
}

// AddressOf reduces "Display Name <user@host>" to "user@host".
// Bare addresses pass through unchanged.
func AddressOf(headerValue string) string {
	if g := firstGroup(Get().Lookup("angle_addr"), headerValue); g != "" {
		return g
	}
	return trimSpace(headerValue)
}

// HasSPFPass reports whether the raw headers carry a passing/neutral SPF marker.
func HasSPFPass(raw string) bool {
	return Get().Lookup("spf_ok").Regex.MatchString(raw)
}

// HasDKIMPass reports whether the raw headers carry a passing DKIM marker.
func HasDKIMPass(raw string) bool {
	return Get().Lookup("dkim_ok").Regex.MatchString(raw)
}

// ExtractLinks returns every URL found in body text, in order of appearance.
func ExtractLinks(body string) []string {
	return Get().Lookup("body_url").Regex.FindAllString(body, -1)
}

func firstGroup(p *Pattern, s string) string {
	m := p.Regex.FindStringSubmatch(s)
	if len(m) > 1 {
		return trimSpace(m[1])
	}
	return ""
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}
