package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/sentinelmark/phishmark/pkg/analyzer"
	"github.com/sentinelmark/phishmark/pkg/config"
	"github.com/sentinelmark/phishmark/pkg/detect"
	"github.com/sentinelmark/phishmark/pkg/embed"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/netinfo"
	"github.com/sentinelmark/phishmark/pkg/reason"
)

const Version = "0.1.0"

// Pipeline holds every wired component behind the verdict engine.
// Each optional layer degrades gracefully when its backing service is
// unavailable.
type Pipeline struct {
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	reasoner *reason.Reasoner
	feed     *intel.FeedLoader
}

func buildPipeline(cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	trust, err := intel.LoadTrustStore(cfg.GoldenListPath, cfg.WhitelistPath)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}

	// Brand similarity index (chromem-go + embedding API) - optional
	var index *embed.BrandIndex
	if cfg.EnableSemantics {
		embedder, err := embed.New(embed.Config{
			Provider:  cfg.EmbedProvider,
			APIKey:    cfg.EmbedAPIKey,
			Model:     cfg.EmbedModel,
			Dimension: cfg.EmbedDimension,
		})
		if err != nil {
			log.Printf("○ Semantic impersonation disabled (embedder init failed: %v)", err)
		} else {
			idx, err := embed.NewBrandIndex(embedder)
			if err != nil {
				log.Printf("○ Semantic impersonation disabled (index init failed: %v)", err)
			} else {
				brands := make([]embed.Brand, 0, len(trust.Entries()))
				for _, e := range trust.Entries() {
					brands = append(brands, embed.Brand{Name: e.Brand, Domains: e.Domains})
				}
				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				if err := idx.Load(ctx, brands); err != nil {
					log.Printf("○ Semantic impersonation disabled (brand load failed: %v)", err)
				} else {
					index = idx
					log.Printf("✓ Semantic impersonation enabled (%d brands indexed)", idx.BrandCount())
				}
				cancel()
			}
		}
	} else {
		log.Println("○ Semantic impersonation disabled (PHISHMARK_ENABLE_SEMANTICS=false)")
	}

	// Threat-intel feed cache: in-process by default, Redis for fleets
	var cache intel.FeedCache
	if cfg.CacheBackend == config.CacheRedis {
		rc, err := intel.NewRedisFeedCache(context.Background(), cfg.RedisURL, cfg.FeedCacheTTL)
		if err != nil {
			log.Printf("○ Redis feed cache unavailable, falling back to memory: %v", err)
			cache = intel.NewMemoryFeedCache(cfg.FeedCacheTTL)
		} else {
			cache = rc
			log.Println("✓ Redis feed cache enabled")
		}
	} else {
		cache = intel.NewMemoryFeedCache(cfg.FeedCacheTTL)
	}

	services := []intel.Service{}
	if sb := intel.NewSafeBrowsing(cfg.SafeBrowsingAPIKey); sb != nil {
		services = append(services, sb)
		log.Println("✓ Google Safe Browsing enabled")
	} else {
		log.Println("○ Google Safe Browsing disabled (no API key)")
	}
	services = append(services,
		intel.NewPhishTank(cfg.PhishTankAPIKey),
		intel.NewURLhaus(cfg.URLHausEndpoint),
	)
	resolver := intel.NewResolver(trust, cache, services...)

	// LLM reasoning (contextual scoring, psychology, vision, drafts) - optional
	reasoner := reason.New(cfg)
	if reasoner.CanReason() {
		log.Printf("✓ LLM reasoning enabled (provider: %s)", cfg.LLMProvider)
	} else {
		log.Println("○ LLM reasoning disabled (provider: none)")
	}
	if reasoner.CanSee() {
		log.Println("✓ Vision spoof detection enabled")
	} else {
		log.Println("○ Vision spoof detection disabled")
	}

	brandHashes := trust.BrandHashes()
	if len(brandHashes) > 0 {
		log.Printf("✓ Favicon doppelganger detection enabled (%d brand fingerprints)", len(brandHashes))
	} else {
		log.Println("○ Favicon doppelganger detection disabled (no favicon_hash entries in golden list)")
	}

	detectors := []detect.Detector{
		detect.NewImpersonationDetector(trust, index),
		detect.NewHomographDetector(),
		detect.NewRawIPDetector(),
		detect.NewUrgencyDetector(),
		detect.NewHeaderForensicsDetector(),
		detect.NewLinkScanDetector(resolver, cfg.LinkScanLimit),
		detect.NewVisualDetector(visionClient(reasoner), trust, brandHashes),
	}
	if cfg.EnableWhois {
		detectors = append(detectors, detect.NewDomainAgeDetector(netinfo.NewAgeLookup(cfg.DetectorTimeout)))
		log.Println("✓ WHOIS domain-age detection enabled")
	} else {
		log.Println("○ WHOIS domain-age detection disabled")
	}
	if cfg.EnableDNS {
		detectors = append(detectors, detect.NewDNSCheckDetector(netinfo.NewRecordLookup(cfg.DetectorTimeout)))
		log.Println("✓ DNS sender checks enabled")
	} else {
		log.Println("○ DNS sender checks disabled")
	}

	engine := detect.NewEngine(detectors, cfg.DetectorTimeout, cfg.GlobalTimeout)

	return &Pipeline{
		cfg:      cfg,
		analyzer: analyzer.New(cfg, trust, resolver, engine, reasonerAPI(reasoner)),
		reasoner: reasoner,
		feed:     intel.NewFeedLoader(cfg.OpenPhishFeedURL, cache),
	}
}

// visionClient keeps the nil check honest: a nil *Reasoner must become a nil
// interface, not an interface wrapping a nil pointer.
func visionClient(r *reason.Reasoner) detect.VisionClient {
	if r == nil {
		return nil
	}
	return r
}

func reasonerAPI(r *reason.Reasoner) analyzer.Reasoner {
	if r == nil {
		return nil
	}
	return r
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := "3000"
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: phishmark scan <url>")
			os.Exit(1)
		}
		runCLIScan(os.Args[2])
	case "scan-email":
		subject := ""
		if len(os.Args) > 2 {
			subject = strings.Join(os.Args[2:], " ")
		}
		runCLIEmailScan(subject)
	case "version":
		fmt.Printf("phishmark v%s\n", Version)
		fmt.Println("Phishing Signal Aggregation & Verdict Engine")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("phishmark v%s - Phishing Signal Aggregation & Verdict Engine\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  phishmark serve [port]        Start HTTP server (default: 3000)")
	fmt.Println("  phishmark scan <url>          Score a URL from the command line")
	fmt.Println("  phishmark scan-email [subj]   Score an email read from stdin")
	fmt.Println("  phishmark version             Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  phishmark serve 8080")
	fmt.Println("  phishmark scan \"http://paypal-secure-login.xyz/verify\"")
	fmt.Println("  cat suspicious.eml | phishmark scan-email \"Account locked\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  PHISHMARK_GOLDEN_LIST          Brand golden list YAML (default: golden_list.yaml)")
	fmt.Println("  PHISHMARK_WHITELIST            Trusted-domain whitelist YAML")
	fmt.Println("  GOOGLE_SAFE_BROWSING_API_KEY   Enables Safe Browsing lookups")
	fmt.Println("  PHISHMARK_LLM_PROVIDER         ollama, groq, openrouter, custom, none")
	fmt.Println("  PHISHMARK_FAILURE_MODE         open (default) or closed")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	p := buildPipeline(cfg)

	// Keep the blacklist feed warm for the life of the server.
	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	go p.feed.Run(feedCtx, intel.RefreshInterval(cfg.FeedCacheTTL))

	app := fiber.New(fiber.Config{
		AppName: "phishmark",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	app.Post("/analyze", func(c fiber.Ctx) error {
		var req analyzer.URLRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.URL == "" {
			return c.Status(400).JSON(fiber.Map{"error": "url field is required"})
		}
		return c.JSON(p.analyzer.AnalyzeURL(c.Context(), req))
	})

	app.Post("/analyze/email", func(c fiber.Ctx) error {
		var req analyzer.EmailRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.Subject == "" && req.Body == "" {
			return c.Status(400).JSON(fiber.Map{"error": "subject or body is required"})
		}
		return c.JSON(p.analyzer.AnalyzeEmail(c.Context(), req))
	})

	app.Post("/assist", func(c fiber.Ctx) error {
		var req struct {
			Question string `json:"question"`
		}
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
		if req.Question == "" {
			return c.Status(400).JSON(fiber.Map{"error": "question field is required"})
		}
		if !p.reasoner.CanReason() {
			return c.Status(503).JSON(fiber.Map{"error": "no LLM provider configured"})
		}
		answer, err := p.reasoner.Assist(c.Context(), req.Question)
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": "assistant unavailable"})
		}
		return c.JSON(fiber.Map{"answer": answer})
	})

	log.Printf("phishmark HTTP server starting on :%s", port)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health         - Health check")
	log.Printf("  POST /analyze        - Score a URL")
	log.Printf("  POST /analyze/email  - Score an email")
	log.Printf("  POST /assist         - Phishing-awareness Q&A")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIScan(url string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	p := buildPipeline(cfg)

	result := p.analyzer.AnalyzeURL(context.Background(), analyzer.URLRequest{URL: url})

	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
}

func runCLIEmailScan(subject string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	p := buildPipeline(cfg)

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reading email from stdin: %v", err)
	}

	// A blank line separates headers from body in a raw message; treat
	// everything as body when no header block is present.
	headers, body := "", string(raw)
	if i := strings.Index(body, "\n\n"); i >= 0 && strings.Contains(body[:i], ":") {
		headers, body = body[:i], body[i+2:]
	}

	result := p.analyzer.AnalyzeEmail(context.Background(), analyzer.EmailRequest{
		Subject:    subject,
		Body:       body,
		RawHeaders: headers,
	})

	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
}
