package reason

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/config"
)

// URLAdjustment is the model's contextual read on a URL, expressed as a
// bounded delta on top of the heuristic score.
type URLAdjustment struct {
	Adjustment         int      `json:"adjustment"` // bounded to [-10, 50]
	Analysis           string   `json:"analysis"`
	Explanation        string   `json:"explanation"`
	Intent             string   `json:"intent"` // credential_theft, payment_fraud, malware, unclear, benign
	SuspiciousElements []string `json:"suspicious_elements"`
	Model              string   `json:"model,omitempty"`
}

const (
	minAdjustment = -10
	maxAdjustment = 50
)

// Validate rejects adjustments outside the contract. The model is told the
// bounds; a violation means it is not following instructions and the next
// model in the chain should be tried.
func (u *URLAdjustment) Validate() error {
	if u.Adjustment < minAdjustment || u.Adjustment > maxAdjustment {
		return fmt.Errorf("adjustment %d outside [%d, %d]", u.Adjustment, minAdjustment, maxAdjustment)
	}
	if u.Analysis == "" {
		return fmt.Errorf("missing analysis")
	}
	return nil
}

// PsychTrigger is one manipulation tactic found in an email.
type PsychTrigger struct {
	Text        string `json:"text"`        // the quoted phrase
	Category    string `json:"category"`    // urgency, fear, authority, greed, curiosity
	Explanation string `json:"explanation"` // why this phrase pressures the reader
}

// PsychologyReport profiles the social-engineering tactics in an email.
type PsychologyReport struct {
	Triggers []PsychTrigger `json:"triggers"`
	Summary  string         `json:"summary"`
	Model    string         `json:"model,omitempty"`
}

// VisionFinding is the screenshot spoof assessment.
type VisionFinding struct {
	IsSpoof    bool    `json:"is_spoof"`
	Brand      string  `json:"brand"`
	Confidence float64 `json:"confidence"`
	Details    string  `json:"details"`
	Model      string  `json:"model,omitempty"`
}

// Reasoner exposes the domain-level LLM operations. A nil Reasoner is valid
// and reports every capability as unavailable.
type Reasoner struct {
	chain       *Chain
	visionChain *Chain
}

// New builds a Reasoner from config. Returns nil when no provider is
// configured so the pipeline can branch on availability with one check.
func New(cfg *config.Config) *Reasoner {
	client := NewClient(cfg)
	if client == nil {
		return nil
	}
	r := &Reasoner{chain: NewChain(client, cfg.LLMModels)}
	if cfg.EnableVision {
		r.visionChain = NewChain(client, cfg.VisionModels)
	}
	return r
}

// CanReason reports whether text reasoning is available.
func (r *Reasoner) CanReason() bool {
	return r != nil && r.chain != nil
}

// CanSee reports whether screenshot analysis is available.
func (r *Reasoner) CanSee() bool {
	return r != nil && r.visionChain != nil
}

const urlSystemPrompt = `You are a phishing analyst. You receive a URL, heuristic
observations already made about it, and optionally text scraped from the page.
Judge the overall deception intent in context.

Respond with JSON only:
{
  "adjustment": <integer between -10 and 50 added to the heuristic risk score>,
  "analysis": "<two sentences on what this URL appears to be>",
  "explanation": "<plain-language summary a non-technical user understands>",
  "intent": "credential_theft|payment_fraud|malware|unclear|benign",
  "suspicious_elements": ["<specific element>", ...]
}

Rules:
- A negative adjustment (down to -10) means the heuristics likely overreacted.
- Reserve adjustments above 30 for clear credential harvesting or payment fraud.
- Never exceed the bounds. Never add fields. Never wrap the JSON in prose.`

// AdjustURLScore asks the chain for a bounded score adjustment given the URL,
// any scraped page text, and the heuristic observations so far.
func (r *Reasoner) AdjustURLScore(ctx context.Context, rawURL, pageText string, observations []string) (*URLAdjustment, error) {
	if !r.CanReason() {
		return nil, fmt.Errorf("reasoning not configured")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", rawURL)
	if len(observations) > 0 {
		fmt.Fprintf(&sb, "HEURISTIC OBSERVATIONS:\n- %s\n", strings.Join(observations, "\n- "))
	}
	if pageText != "" {
		fmt.Fprintf(&sb, "PAGE TEXT (truncated):\n%s\n", truncate(pageText, 4000))
	}

	var out URLAdjustment
	model, err := r.chain.CompleteJSON(ctx,
		[]Message{Text("system", urlSystemPrompt), Text("user", sb.String())},
		&out, out.Validate)
	if err != nil {
		return nil, err
	}
	out.Model = model
	return &out, nil
}

const psychologySystemPrompt = `You are a social-engineering analyst. Identify the
psychological manipulation tactics in the email below. Quote the exact phrases.

Respond with JSON only:
{
  "triggers": [
    {"text": "<quoted phrase>", "category": "urgency|fear|authority|greed|curiosity", "explanation": "<one sentence>"}
  ],
  "summary": "<one sentence on the overall pressure strategy, or empty if none>"
}

A legitimate email usually has zero triggers. Do not invent tactics.`

// ProfilePsychology extracts manipulation tactics from an email.
func (r *Reasoner) ProfilePsychology(ctx context.Context, subject, body string) (*PsychologyReport, error) {
	if !r.CanReason() {
		return nil, fmt.Errorf("reasoning not configured")
	}

	user := fmt.Sprintf("SUBJECT: %s\n\nBODY:\n%s", subject, truncate(body, 6000))
	var out PsychologyReport
	model, err := r.chain.CompleteJSON(ctx,
		[]Message{Text("system", psychologySystemPrompt), Text("user", user)},
		&out, nil)
	if err != nil {
		return nil, err
	}
	out.Model = model
	return &out, nil
}

const visionSystemPrompt = `You inspect a screenshot of a web page and decide if it
visually imitates a well-known brand's login or payment page while not being
hosted on that brand's domain.

Respond with JSON only:
{"is_spoof": true|false, "brand": "<imitated brand or empty>", "confidence": 0.0-1.0, "details": "<one sentence>"}`

// InspectScreenshot asks a vision model whether the screenshot imitates one
// of the protected brands. The image arrives as a data URL.
func (r *Reasoner) InspectScreenshot(ctx context.Context, imageDataURL string, host string, brands []string) (*VisionFinding, error) {
	if !r.CanSee() {
		return nil, fmt.Errorf("vision not configured")
	}

	prompt := fmt.Sprintf("The page is hosted on %q. Protected brands: %s.",
		host, strings.Join(brands, ", "))
	var out VisionFinding
	model, err := r.visionChain.CompleteJSON(ctx,
		[]Message{Text("system", visionSystemPrompt), UserWithImage(prompt, imageDataURL)},
		&out, nil)
	if err != nil {
		return nil, err
	}
	out.Model = model
	return &out, nil
}

const draftSystemPrompt = `You write short, calm guidance for someone who received a
suspicious email. Tell them what was detected, that they should not click links
or reply, and how to verify through official channels. Under 120 words, plain
text, no markdown.`

// DraftWarning writes user-facing guidance for a suspicious email.
func (r *Reasoner) DraftWarning(ctx context.Context, subject string, score int, findings []string) (string, error) {
	if !r.CanReason() {
		return "", fmt.Errorf("reasoning not configured")
	}

	user := fmt.Sprintf("Email subject: %q\nRisk score: %d/100\nFindings:\n- %s",
		subject, score, strings.Join(findings, "\n- "))
	return r.chain.CompleteText(ctx,
		[]Message{Text("system", draftSystemPrompt), Text("user", user)})
}

const assistSystemPrompt = `You are a phishing-awareness assistant. Answer questions
about phishing, scams and online safety concisely and practically. Decline
questions outside that scope.`

// Assist answers a free-form user question about phishing safety.
func (r *Reasoner) Assist(ctx context.Context, question string) (string, error) {
	if !r.CanReason() {
		return "", fmt.Errorf("reasoning not configured")
	}
	return r.chain.CompleteText(ctx,
		[]Message{Text("system", assistSystemPrompt), Text("user", question)})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
