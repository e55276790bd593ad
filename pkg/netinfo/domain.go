// Package netinfo answers questions about the network identity behind a URL
// or email sender: what the registrable domain is, how old the registration
// is, and whether the domain has working mail infrastructure.
package netinfo

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname extracts the lowercase hostname from a raw URL. Inputs without a
// scheme are treated as host-first ("paypal.com/login" style).
func Hostname(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		// Fall back to slicing off path and port manually.
		host := strings.TrimSpace(rawURL)
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return strings.ToLower(host)
	}
	return strings.ToLower(u.Hostname())
}

// RegistrableDomain reduces a hostname to its eTLD+1 using the public suffix
// list, so "login.accounts.paypal.com" and "paypal.com" compare equal.
// IP literals and unlisted hosts fall back to the last two labels.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// IsRawIP reports whether a hostname is an IP literal. Legitimate brands do
// not serve login pages off bare addresses.
func IsRawIP(host string) bool {
	host = strings.Trim(host, "[]")
	return net.ParseIP(host) != nil
}

// SenderDomain extracts the domain portion of an email address, lowercased.
func SenderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}
