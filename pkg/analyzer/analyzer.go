// Package analyzer orchestrates one analysis request end to end: trust
// short-circuits, the blacklist layer, the detector fan-out, LLM reasoning
// and fusion into the final verdict payload.
package analyzer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sentinelmark/phishmark/pkg/config"
	"github.com/sentinelmark/phishmark/pkg/detect"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/lexicon"
	"github.com/sentinelmark/phishmark/pkg/reason"
)

const (
	// Reasoning only runs when there is context worth reasoning about, or
	// the heuristics already found something worth a second opinion.
	reasoningScoreFloor = 20
	psychologyPoints    = 20
	draftScoreFloor     = 40
)

// BlacklistResolver is satisfied by intel.Resolver.
type BlacklistResolver interface {
	Resolve(ctx context.Context, rawURL string) intel.Verdict
}

// Reasoner is the LLM seam, satisfied by reason.Reasoner.
type Reasoner interface {
	CanReason() bool
	AdjustURLScore(ctx context.Context, rawURL, pageText string, observations []string) (*reason.URLAdjustment, error)
	ProfilePsychology(ctx context.Context, subject, body string) (*reason.PsychologyReport, error)
	DraftWarning(ctx context.Context, subject string, score int, findings []string) (string, error)
}

// Analyzer fuses every detection layer into verdicts.
type Analyzer struct {
	cfg      *config.Config
	trust    *intel.TrustStore
	resolver BlacklistResolver
	engine   *detect.Engine
	reasoner Reasoner
}

// New wires an analyzer from its layers. resolver and reasoner may be nil
// for degraded deployments.
func New(cfg *config.Config, trust *intel.TrustStore, resolver BlacklistResolver, engine *detect.Engine, reasoner Reasoner) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		trust:    trust,
		resolver: resolver,
		engine:   engine,
		reasoner: reasoner,
	}
}

// URLRequest is one URL analysis call. The optional context fields carry
// what the user actually saw: the clickable text, the words around it and
// the markup that rendered it.
type URLRequest struct {
	URL         string `json:"url"`
	AnchorText  string `json:"anchor_text,omitempty"`
	PageContext string `json:"context,omitempty"`
	DOMSnippet  string `json:"dom_snippet,omitempty"`
	PageText    string `json:"page_text,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"` // data URL
	FaviconURL  string `json:"favicon_url,omitempty"`
}

// hasContext reports whether the request carries anything beyond the bare URL.
func (req URLRequest) hasContext() bool {
	return req.AnchorText != "" || req.PageContext != "" || req.DOMSnippet != "" ||
		req.PageText != "" || req.Screenshot != ""
}

// contextText assembles the textual context handed to the reasoning pass.
func (req URLRequest) contextText() string {
	var sb strings.Builder
	if req.AnchorText != "" {
		fmt.Fprintf(&sb, "ANCHOR TEXT: %s\n", req.AnchorText)
	}
	if req.PageContext != "" {
		fmt.Fprintf(&sb, "SURROUNDING CONTEXT: %s\n", req.PageContext)
	}
	if req.DOMSnippet != "" {
		fmt.Fprintf(&sb, "DOM SNIPPET: %s\n", req.DOMSnippet)
	}
	sb.WriteString(req.PageText)
	return sb.String()
}

// EmailRequest is one email analysis call.
type EmailRequest struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	RawHeaders string `json:"headers,omitempty"`
}

// AnalyzeURL runs the full URL pipeline. It never panics outward; an
// internal failure yields an ERROR verdict with score 0.
func (a *Analyzer) AnalyzeURL(ctx context.Context, req URLRequest) (result *detect.AnalysisResult) {
	start := time.Now()
	result = detect.NewResult(detect.ModeURL, req.URL)
	defer func() {
		result.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
		if r := recover(); r != nil {
			log.Printf("[WARN] url analysis panicked: %v", r)
			failResult(result, r)
		}
	}()

	in := detect.NewURLInput(req.URL)
	in.AnchorText = req.AnchorText
	in.PageContext = req.PageContext
	in.DOMSnippet = req.DOMSnippet
	in.PageText = req.PageText
	in.Screenshot = req.Screenshot
	in.FaviconURL = req.FaviconURL

	// Trusted domains skip the detector fleet entirely. The fixed payload
	// keeps repeated lookups of major domains cheap and cache-friendly.
	if a.trust != nil && a.trust.IsWhitelisted(in.Host) {
		result.Status = intel.StatusWhitelisted
		result.Verdict = detect.VerdictSafe
		result.Score = 0
		result.Narrative = []string{"Domain is on the trusted whitelist."}
		return result
	}

	blacklisted := false
	if a.resolver != nil {
		v := a.resolver.Resolve(ctx, req.URL)
		result.Status = v.Status
		blacklisted = v.IsMalicious
	}

	outcomes := a.engine.Run(ctx, in)

	var extra []detect.Signal
	if !blacklisted && a.shouldReason(outcomes, req.hasContext()) {
		if sig, adj := a.reasonAboutURL(ctx, req, outcomes); sig != nil {
			extra = append(extra, *sig)
			result.Explanation = adj.Explanation
			result.Intent = adj.Intent
		}
	}

	result.ApplyFusion(detect.Fuse(detect.ModeURL, outcomes, extra, a.cfg.FailureMode, blacklisted))
	return result
}

// AnalyzeEmail runs the full email pipeline.
func (a *Analyzer) AnalyzeEmail(ctx context.Context, req EmailRequest) (result *detect.AnalysisResult) {
	start := time.Now()
	result = detect.NewResult(detect.ModeEmail, req.Subject)
	defer func() {
		result.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
		if r := recover(); r != nil {
			log.Printf("[WARN] email analysis panicked: %v", r)
			failResult(result, r)
		}
	}()

	fromAddr := lexicon.AddressOf(lexicon.FromHeader(req.RawHeaders))
	returnPath := lexicon.AddressOf(lexicon.ReturnPathHeader(req.RawHeaders))
	links := lexicon.ExtractLinks(req.Body)

	in := detect.NewEmailInput(req.Subject, req.Body, req.RawHeaders, fromAddr, returnPath, links)

	outcomes := a.engine.Run(ctx, in)

	var extra []detect.Signal
	if a.cfg.EnableReasoning && a.reasoner != nil && a.reasoner.CanReason() {
		if sig := a.profileEmail(ctx, req); sig != nil {
			extra = append(extra, *sig)
		}
	}

	result.ApplyFusion(detect.Fuse(detect.ModeEmail, outcomes, extra, a.cfg.FailureMode, false))

	if result.Score > draftScoreFloor && a.reasoner != nil && a.reasoner.CanReason() {
		findings := make([]string, 0, len(result.Signals))
		for _, s := range result.Signals {
			if s.Points > 0 {
				findings = append(findings, s.Message)
			}
		}
		draft, err := a.reasoner.DraftWarning(ctx, req.Subject, result.Score, findings)
		if err != nil {
			log.Printf("[WARN] draft reply failed: %v", err)
		} else {
			result.DraftReply = draft
		}
	}
	return result
}

func (a *Analyzer) shouldReason(outcomes []detect.Outcome, hasContext bool) bool {
	if !a.cfg.EnableReasoning || a.reasoner == nil || !a.reasoner.CanReason() {
		return false
	}
	if hasContext {
		return true
	}
	total := 0
	for i := range outcomes {
		total += outcomes[i].Points()
	}
	return total > reasoningScoreFloor
}

func (a *Analyzer) reasonAboutURL(ctx context.Context, req URLRequest, outcomes []detect.Outcome) (*detect.Signal, *reason.URLAdjustment) {
	var observations []string
	for _, o := range outcomes {
		for _, s := range o.Signals {
			if s.Points != 0 {
				observations = append(observations, s.Message)
			}
		}
	}

	adj, err := a.reasoner.AdjustURLScore(ctx, req.URL, req.contextText(), observations)
	if err != nil {
		log.Printf("[WARN] url reasoning failed: %v", err)
		return nil, nil
	}

	severity := detect.SeverityInfo
	if adj.Adjustment > 0 {
		severity = detect.SeverityMedium
	}
	sig := detect.NewSignal(detect.KindAIReasoning, severity, adj.Adjustment, adj.Analysis).
		WithDetail("intent", adj.Intent).
		WithDetail("suspicious_elements", adj.SuspiciousElements).
		WithDetail("model", adj.Model)
	return &sig, adj
}

func (a *Analyzer) profileEmail(ctx context.Context, req EmailRequest) *detect.Signal {
	rep, err := a.reasoner.ProfilePsychology(ctx, req.Subject, req.Body)
	if err != nil {
		log.Printf("[WARN] psychology profiling failed: %v", err)
		return nil
	}
	if len(rep.Triggers) == 0 {
		return nil
	}

	sig := detect.NewSignal(detect.KindPsychology, detect.SeverityMedium, psychologyPoints, rep.Summary).
		WithDetail("triggers", rep.Triggers).
		WithDetail("model", rep.Model)
	return &sig
}

// failResult converts a partially-built result into the terminal ERROR
// payload. Identity and timing fields survive; the recovered value travels
// in the narrative so operators can diagnose from the response alone.
func failResult(r *detect.AnalysisResult, cause any) {
	r.Score = 0
	r.Verdict = detect.VerdictError
	r.Signals = nil
	r.FailedDetectors = nil
	r.Narrative = []string{fmt.Sprintf("analysis failed: %v", cause)}
}
