package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"net/http"

	"github.com/sentinelmark/phishmark/pkg/httputil"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/reason"
)

const (
	visionSpoofPoints  = 85
	faviconSpoofPoints = 60
	// faviconMaxDistance is the Hamming threshold under which two favicons
	// count as the same icon.
	faviconMaxDistance = 5
)

// VisionClient is the screenshot analysis seam, satisfied by reason.Reasoner.
type VisionClient interface {
	CanSee() bool
	InspectScreenshot(ctx context.Context, imageDataURL, host string, brands []string) (*reason.VisionFinding, error)
}

// VisualDetector decides whether a page visually imitates a protected brand.
// The vision model judges the screenshot when one is provided; the favicon
// perceptual hash is the fallback when there is no screenshot or the vision
// call fails.
type VisualDetector struct {
	vision      VisionClient
	trust       *intel.TrustStore
	brandHashes map[string]uint64 // brand name -> official favicon average hash
	client      *http.Client
}

// NewVisualDetector builds the detector. vision may be nil; brandHashes may
// be empty, which disables the favicon tier.
func NewVisualDetector(vision VisionClient, trust *intel.TrustStore, brandHashes map[string]uint64) *VisualDetector {
	return &VisualDetector{
		vision:      vision,
		trust:       trust,
		brandHashes: brandHashes,
		client:      httputil.IntelClient(),
	}
}

func (d *VisualDetector) Name() string { return "visual_spoof" }

func (d *VisualDetector) AppliesTo(mode Mode) bool { return mode == ModeURL }

func (d *VisualDetector) Detect(ctx context.Context, in *Input) ([]Signal, error) {
	// Whoever legitimately owns the domain may look like themselves.
	if _, legit := d.trust.BrandForDomain(in.Host); legit {
		return nil, nil
	}

	if in.Screenshot != "" && d.vision != nil && d.vision.CanSee() {
		sigs, err := d.inspectScreenshot(ctx, in)
		if err == nil {
			return sigs, nil
		}
		log.Printf("[WARN] vision analysis failed, falling back to favicon: %v", err)
	}

	return d.compareFavicon(ctx, in)
}

func (d *VisualDetector) inspectScreenshot(ctx context.Context, in *Input) ([]Signal, error) {
	brands := make([]string, 0, len(d.trust.Entries()))
	for _, e := range d.trust.Entries() {
		brands = append(brands, e.Brand)
	}

	finding, err := d.vision.InspectScreenshot(ctx, in.Screenshot, in.Host, brands)
	if err != nil {
		return nil, err
	}
	if !finding.IsSpoof {
		return nil, nil
	}

	sig := NewSignal(KindVisualSpoof, SeverityCritical, visionSpoofPoints,
		fmt.Sprintf("page visually imitates %s while hosted on %q", finding.Brand, in.Host)).
		WithDetail("brand", finding.Brand).
		WithDetail("confidence", finding.Confidence).
		WithDetail("method", "vision").
		WithDetail("model", finding.Model)
	return []Signal{sig}, nil
}

func (d *VisualDetector) compareFavicon(ctx context.Context, in *Input) ([]Signal, error) {
	if len(d.brandHashes) == 0 {
		return nil, nil
	}

	faviconURL := in.FaviconURL
	if faviconURL == "" {
		if in.Host == "" {
			return nil, nil
		}
		faviconURL = "https://" + in.Host + "/favicon.ico"
	}

	hash, err := d.fetchFaviconHash(ctx, faviconURL)
	if err != nil {
		return nil, fmt.Errorf("favicon: %w", err)
	}

	bestBrand, bestDist := "", faviconMaxDistance
	for brand, known := range d.brandHashes {
		if dist := HammingDistance(hash, known); dist < bestDist {
			bestBrand, bestDist = brand, dist
		}
	}
	if bestBrand == "" {
		return nil, nil
	}

	sig := NewSignal(KindVisualSpoof, SeverityHigh, faviconSpoofPoints,
		fmt.Sprintf("favicon matches the official %s icon (distance %d) on unrelated host %q", bestBrand, bestDist, in.Host)).
		WithDetail("brand", bestBrand).
		WithDetail("hamming_distance", bestDist).
		WithDetail("method", "favicon")
	return []Signal{sig}, nil
}

func (d *VisualDetector) fetchFaviconHash(ctx context.Context, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := httputil.ReadResponseBody(resp.Body, 1024*1024)
	if err != nil {
		return 0, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	return AverageHash(img), nil
}
