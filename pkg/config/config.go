package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMProvider defines the backend LLM service type
type LLMProvider string

const (
	ProviderNone       LLMProvider = "none"       // No LLM, heuristics only
	ProviderOllama     LLMProvider = "ollama"     // Local Ollama server
	ProviderOpenRouter LLMProvider = "openrouter" // OpenRouter (default, has free tier)
	ProviderGroq       LLMProvider = "groq"       // Groq (high-speed inference)
	ProviderCustom     LLMProvider = "custom"     // Custom OpenAI-compatible endpoint
)

// FailureMode defines how a failed detector counts toward the verdict
type FailureMode string

const (
	// FailOpen treats an unevaluable signal as "no evidence of risk" (default).
	// This is the availability-over-false-negatives trade the product made;
	// it is a policy choice, not an accident.
	FailOpen FailureMode = "open"
	// FailClosed converts each detector failure into a small suspicion signal
	// so outages surface in the score instead of silently lowering it.
	FailClosed FailureMode = "closed"
)

// CacheBackend selects the threat-feed cache implementation
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory" // in-process TTL cache
	CacheRedis  CacheBackend = "redis"  // shared cache for multi-instance deployments
)

// Config holds global settings for the phishmark gateway.
// All settings can be configured via environment variables or programmatically.
type Config struct {
	// === Static data ===
	GoldenListPath string // Path to brand→domain golden list YAML
	WhitelistPath  string // Path to trusted-domain whitelist YAML

	// === Threat intel ===
	SafeBrowsingAPIKey string // Google Safe Browsing v4 key (empty = service disabled)
	PhishTankAPIKey    string // PhishTank key (optional, lookups work without it)
	URLHausEndpoint    string // URLhaus lookup endpoint
	OpenPhishFeedURL   string // Bulk community feed of known-phish URLs
	FeedCacheTTL       time.Duration
	CacheBackend       CacheBackend
	RedisURL           string // Used when CacheBackend == CacheRedis

	// === LLM / reasoning ===
	LLMProvider  LLMProvider
	LLMAPIKey    string   // API key for cloud providers (env: PHISHMARK_LLM_API_KEY or provider-specific)
	LLMModels    []string // Ordered fallback chain; first parseable result wins
	VisionModels []string // Ordered fallback chain for screenshot analysis
	LLMBaseURL   string   // Custom base URL for self-hosted or custom providers
	LLMTimeout   time.Duration

	// === Embeddings (brand similarity) ===
	EmbedProvider  string // "openrouter" or "noop"
	EmbedAPIKey    string
	EmbedModel     string
	EmbedDimension int

	// === Engine ===
	FailureMode     FailureMode
	DetectorTimeout time.Duration // Per-detector deadline inside the fan-out
	GlobalTimeout   time.Duration // Ceiling across the whole fan-out
	LinkScanLimit   int           // Max concurrent blacklist lookups per email body

	// === Feature flags ===
	EnableVision    bool // Screenshot analysis via vision models
	EnableSemantics bool // Embedding brand-similarity detection
	EnableReasoning bool // LLM contextual reasoning pass
	EnableWhois     bool // Domain-age lookups
	EnableDNS       bool // MX/TXT lookups for email senders
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	cfg := &Config{
		GoldenListPath: GetEnv("PHISHMARK_GOLDEN_LIST", "golden_list.yaml"),
		WhitelistPath:  GetEnv("PHISHMARK_WHITELIST", "top_domains.yaml"),

		SafeBrowsingAPIKey: GetEnv("GOOGLE_SAFE_BROWSING_API_KEY", ""),
		PhishTankAPIKey:    GetEnv("PHISHTANK_API_KEY", ""),
		URLHausEndpoint:    GetEnv("PHISHMARK_URLHAUS_ENDPOINT", "https://urlhaus-api.abuse.ch/v1/url/"),
		OpenPhishFeedURL:   GetEnv("PHISHMARK_FEED_URL", "https://openphish.com/feed.txt"),
		FeedCacheTTL:       time.Duration(GetEnvInt("PHISHMARK_FEED_TTL_SECONDS", 3600)) * time.Second,
		CacheBackend:       CacheBackend(GetEnv("PHISHMARK_CACHE_BACKEND", "memory")),
		RedisURL:           GetEnv("PHISHMARK_REDIS_URL", "redis://localhost:6379/0"),

		LLMProvider:  detectLLMProvider(),
		LLMAPIKey:    GetEnv("PHISHMARK_LLM_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		LLMModels:    GetEnvSlice("PHISHMARK_LLM_MODELS", []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}),
		VisionModels: GetEnvSlice("PHISHMARK_VISION_MODELS", []string{"llama-3.2-11b-vision-preview"}),
		LLMBaseURL:   GetEnv("PHISHMARK_LLM_BASE_URL", ""),
		LLMTimeout:   time.Duration(GetEnvInt("PHISHMARK_LLM_TIMEOUT_MS", 30000)) * time.Millisecond,

		EmbedProvider:  GetEnv("PHISHMARK_EMBED_PROVIDER", "openrouter"),
		EmbedAPIKey:    GetEnv("PHISHMARK_EMBED_API_KEY", os.Getenv("OPENROUTER_API_KEY")),
		EmbedModel:     GetEnv("PHISHMARK_EMBED_MODEL", "qwen/qwen3-embedding-4b"),
		EmbedDimension: GetEnvInt("PHISHMARK_EMBED_DIM", 1024),

		FailureMode:     FailureMode(GetEnv("PHISHMARK_FAILURE_MODE", "open")),
		DetectorTimeout: time.Duration(GetEnvInt("PHISHMARK_DETECTOR_TIMEOUT_MS", 5000)) * time.Millisecond,
		GlobalTimeout:   time.Duration(GetEnvInt("PHISHMARK_GLOBAL_TIMEOUT_MS", 20000)) * time.Millisecond,
		LinkScanLimit:   clampInt(GetEnvInt("PHISHMARK_LINK_SCAN_LIMIT", 8), 1, 64),

		EnableVision:    GetEnvBool("PHISHMARK_ENABLE_VISION", true),
		EnableSemantics: GetEnvBool("PHISHMARK_ENABLE_SEMANTICS", true),
		EnableReasoning: GetEnvBool("PHISHMARK_ENABLE_REASONING", true),
		EnableWhois:     GetEnvBool("PHISHMARK_ENABLE_WHOIS", true),
		EnableDNS:       GetEnvBool("PHISHMARK_ENABLE_DNS", true),
	}

	return cfg
}

// NewOfflineConfig creates a Config for air-gapped operation: no cloud LLM,
// no embedding API, no threat-intel calls beyond the cached feed.
func NewOfflineConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.LLMProvider = ProviderNone
	cfg.EmbedProvider = "noop"
	cfg.EnableVision = false
	cfg.EnableReasoning = false
	cfg.SafeBrowsingAPIKey = ""
	return cfg
}

// NewStrictConfig creates a Config that surfaces detector outages in the score
// instead of silently failing open. Expect more false positives during
// upstream incidents.
func NewStrictConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.FailureMode = FailClosed
	return cfg
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func detectLLMProvider() LLMProvider {
	// Check explicit provider setting first
	if p := os.Getenv("PHISHMARK_LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	// Auto-detect based on available keys
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("PHISHMARK_LLM_API_KEY") != "" {
		return ProviderOpenRouter
	}
	// Default to Ollama (local) if no cloud keys found
	return ProviderOllama
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// Validate checks that the configuration is internally consistent.
// Missing API keys degrade features rather than fail startup; only
// contradictory settings are errors.
func (c *Config) Validate() error {
	var problems []string

	switch c.FailureMode {
	case FailOpen, FailClosed:
	default:
		problems = append(problems, fmt.Sprintf("PHISHMARK_FAILURE_MODE must be open or closed, got %q", c.FailureMode))
	}

	switch c.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		problems = append(problems, fmt.Sprintf("PHISHMARK_CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend))
	}

	if c.CacheBackend == CacheRedis && c.RedisURL == "" {
		problems = append(problems, "PHISHMARK_REDIS_URL required when cache backend is redis")
	}

	if c.DetectorTimeout > c.GlobalTimeout {
		problems = append(problems, "per-detector timeout exceeds the global fan-out ceiling")
	}

	if len(c.LLMModels) == 0 && c.LLMProvider != ProviderNone {
		problems = append(problems, "PHISHMARK_LLM_MODELS must name at least one model")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}
