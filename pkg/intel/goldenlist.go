// Package intel provides the static trust data (golden list, whitelist) and
// the live threat-intelligence layer (blacklist services, community feeds)
// behind the verdict engine.
package intel

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sentinelmark/phishmark/pkg/netinfo"
)

// GoldenEntry maps a protected brand to its legitimate registrable domains
// and, optionally, the 64-bit average hash of its official favicon as a hex
// string.
type GoldenEntry struct {
	Brand       string   `yaml:"brand"`
	Domains     []string `yaml:"domains"`
	FaviconHash string   `yaml:"favicon_hash,omitempty"`
}

// goldenFile is the on-disk golden list shape.
type goldenFile struct {
	Brands []GoldenEntry `yaml:"brands"`
}

// whitelistFile is the on-disk trusted-domain whitelist shape.
type whitelistFile struct {
	Domains []string `yaml:"domains"`
}

// TrustStore holds the golden list and the trusted-domain whitelist.
// Immutable after load; safe for concurrent reads.
type TrustStore struct {
	entries   []GoldenEntry
	whitelist map[string]struct{} // registrable domains, lowercase
}

// LoadTrustStore reads the golden list and whitelist YAML files. A missing
// whitelist degrades to an empty set; a missing golden list is an error
// because impersonation detection depends on it.
func LoadTrustStore(goldenPath, whitelistPath string) (*TrustStore, error) {
	ts := &TrustStore{whitelist: make(map[string]struct{})}

	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return nil, fmt.Errorf("golden list %s: %w", goldenPath, err)
	}
	var gf goldenFile
	if err := yaml.Unmarshal(goldenData, &gf); err != nil {
		return nil, fmt.Errorf("golden list %s: %w", goldenPath, err)
	}
	ts.entries = gf.Brands

	wlData, err := os.ReadFile(whitelistPath)
	if err != nil {
		log.Printf("[WARN] whitelist %s unavailable: %v", whitelistPath, err)
	} else {
		var wf whitelistFile
		if err := yaml.Unmarshal(wlData, &wf); err != nil {
			return nil, fmt.Errorf("whitelist %s: %w", whitelistPath, err)
		}
		for _, d := range wf.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				ts.whitelist[d] = struct{}{}
			}
		}
	}

	log.Printf("[INFO] trust store loaded: %d brands, %d whitelisted domains", len(ts.entries), len(ts.whitelist))
	return ts, nil
}

// NewTrustStore builds a store from in-memory data, for tests and embedding.
func NewTrustStore(entries []GoldenEntry, whitelist []string) *TrustStore {
	ts := &TrustStore{
		entries:   entries,
		whitelist: make(map[string]struct{}, len(whitelist)),
	}
	for _, d := range whitelist {
		ts.whitelist[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return ts
}

// Entries returns the golden list.
func (ts *TrustStore) Entries() []GoldenEntry {
	return ts.entries
}

// BrandHashes returns the official favicon fingerprints keyed by brand name,
// for perceptual-hash comparison against fetched candidate favicons.
func (ts *TrustStore) BrandHashes() map[string]uint64 {
	hashes := make(map[string]uint64)
	for _, e := range ts.entries {
		if e.FaviconHash == "" {
			continue
		}
		h, err := strconv.ParseUint(e.FaviconHash, 16, 64)
		if err != nil {
			log.Printf("[WARN] golden list: favicon hash for %s is not 64-bit hex: %v", e.Brand, err)
			continue
		}
		hashes[e.Brand] = h
	}
	return hashes
}

// IsWhitelisted reports whether a hostname's registrable domain is trusted.
// Subdomains of a whitelisted domain are trusted; look-alikes are not.
func (ts *TrustStore) IsWhitelisted(host string) bool {
	reg := netinfo.RegistrableDomain(host)
	if reg == "" {
		return false
	}
	_, ok := ts.whitelist[reg]
	return ok
}

// BrandForDomain returns the golden-list brand that legitimately owns the
// hostname, if any. A host matches when its registrable domain equals one of
// the brand's domains.
func (ts *TrustStore) BrandForDomain(host string) (GoldenEntry, bool) {
	reg := netinfo.RegistrableDomain(host)
	for _, e := range ts.entries {
		for _, d := range e.Domains {
			if reg == strings.ToLower(d) {
				return e, true
			}
		}
	}
	return GoldenEntry{}, false
}

// BrandMentioned returns the first golden-list brand whose name appears as a
// substring of the hostname. This is the cheap lexical impersonation check
// that runs before any embedding similarity.
func (ts *TrustStore) BrandMentioned(host string) (GoldenEntry, bool) {
	lower := strings.ToLower(host)
	for _, e := range ts.entries {
		name := strings.ToLower(strings.ReplaceAll(e.Brand, " ", ""))
		if name != "" && strings.Contains(strings.ReplaceAll(lower, "-", ""), name) {
			return e, true
		}
	}
	return GoldenEntry{}, false
}
