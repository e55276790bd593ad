package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentinelmark/phishmark/pkg/config"
	"github.com/sentinelmark/phishmark/pkg/detect"
	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/reason"
)

type fixedDetector struct {
	name   string
	points int
	seen   *detect.Input // records the last input for assertions
}

func (f *fixedDetector) Name() string { return f.name }

func (f *fixedDetector) Detect(_ context.Context, in *detect.Input) ([]detect.Signal, error) {
	f.seen = in
	if f.points == 0 {
		return nil, nil
	}
	return []detect.Signal{
		detect.NewSignal(detect.KindUrgency, detect.SeverityMedium, f.points, f.name+" fired"),
	}, nil
}

type stubBlacklist struct {
	verdict intel.Verdict
	calls   int
}

func (s *stubBlacklist) Resolve(_ context.Context, _ string) intel.Verdict {
	s.calls++
	return s.verdict
}

type stubReasoner struct {
	adjustment  *reason.URLAdjustment
	adjustErr   error
	adjustCalls int

	report   *reason.PsychologyReport
	draft    string
	draftErr error
}

func (s *stubReasoner) CanReason() bool { return true }

func (s *stubReasoner) AdjustURLScore(_ context.Context, _, _ string, _ []string) (*reason.URLAdjustment, error) {
	s.adjustCalls++
	return s.adjustment, s.adjustErr
}

func (s *stubReasoner) ProfilePsychology(_ context.Context, _, _ string) (*reason.PsychologyReport, error) {
	if s.report == nil {
		return &reason.PsychologyReport{}, nil
	}
	return s.report, nil
}

func (s *stubReasoner) DraftWarning(_ context.Context, _ string, _ int, _ []string) (string, error) {
	return s.draft, s.draftErr
}

func testAnalyzer(points int, resolver BlacklistResolver, reasoner Reasoner) (*Analyzer, *fixedDetector) {
	cfg := config.NewOfflineConfig()
	cfg.EnableReasoning = reasoner != nil

	trust := intel.NewTrustStore(
		[]intel.GoldenEntry{{Brand: "PayPal", Domains: []string{"paypal.com"}}},
		[]string{"example.com"},
	)
	det := &fixedDetector{name: "fixed", points: points}
	engine := detect.NewEngine([]detect.Detector{det}, time.Second, 5*time.Second)
	return New(cfg, trust, resolver, engine, reasoner), det
}

func TestAnalyzeURLWhitelistShortCircuit(t *testing.T) {
	resolver := &stubBlacklist{}
	a, det := testAnalyzer(60, resolver, nil)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://docs.example.com/login"})

	if res.Score != 0 || res.Verdict != detect.VerdictSafe || res.Status != intel.StatusWhitelisted {
		t.Errorf("whitelisted URL = %d/%s/%s, want 0/SAFE/WHITELISTED", res.Score, res.Verdict, res.Status)
	}
	if resolver.calls != 0 {
		t.Error("whitelisted URLs must not reach the blacklist layer")
	}
	if det.seen != nil {
		t.Error("whitelisted URLs must not reach the detector engine")
	}
}

func TestAnalyzeURLBlacklistOverride(t *testing.T) {
	resolver := &stubBlacklist{verdict: intel.Verdict{
		IsMalicious: true,
		Status:      intel.StatusVerifiedPhish,
		Sources:     map[string]bool{"feed": true},
	}}
	reasoner := &stubReasoner{adjustment: &reason.URLAdjustment{Adjustment: -10, Analysis: "benign"}}
	a, _ := testAnalyzer(5, resolver, reasoner)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://evil.xyz/login"})

	if res.Score != 100 || res.Verdict != detect.VerdictVerifiedPhish {
		t.Errorf("blacklisted URL = %d/%s, want 100/VERIFIED_PHISH", res.Score, res.Verdict)
	}
	if res.Status != intel.StatusVerifiedPhish {
		t.Errorf("status = %s, want VERIFIED_PHISH", res.Status)
	}
	if reasoner.adjustCalls != 0 {
		t.Error("confirmed phish should not spend LLM budget on reasoning")
	}
}

func TestAnalyzeURLReasoningAdjustsScore(t *testing.T) {
	reasoner := &stubReasoner{adjustment: &reason.URLAdjustment{
		Adjustment:  20,
		Analysis:    "Fake login form harvesting credentials.",
		Explanation: "This page pretends to be a bank login.",
		Intent:      "credential_theft",
	}}
	a, _ := testAnalyzer(30, &stubBlacklist{}, reasoner)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://suspicious.xyz/"})

	if res.Score != 50 {
		t.Errorf("score = %d, want 30 heuristic + 20 adjustment", res.Score)
	}
	if res.Explanation == "" || res.Intent != "credential_theft" {
		t.Errorf("reasoning fields not propagated: %+v", res)
	}
	found := false
	for _, s := range res.Signals {
		if s.Kind == detect.KindAIReasoning && s.Points == 20 {
			found = true
		}
	}
	if !found {
		t.Error("adjustment should appear as a signal in the stream")
	}
}

func TestAnalyzeURLSkipsReasoningBelowFloor(t *testing.T) {
	reasoner := &stubReasoner{adjustment: &reason.URLAdjustment{Adjustment: 50, Analysis: "x"}}
	a, _ := testAnalyzer(10, &stubBlacklist{}, reasoner)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://quiet.example.net/"})

	if reasoner.adjustCalls != 0 {
		t.Error("low-score URLs without page context should skip reasoning")
	}
	if res.Score != 10 {
		t.Errorf("score = %d, want 10", res.Score)
	}
}

func TestAnalyzeURLPageTextForcesReasoning(t *testing.T) {
	reasoner := &stubReasoner{adjustment: &reason.URLAdjustment{Adjustment: 0, Analysis: "looks fine"}}
	a, _ := testAnalyzer(0, &stubBlacklist{}, reasoner)

	a.AnalyzeURL(context.Background(), URLRequest{
		URL:      "https://quiet.example.net/",
		PageText: "Enter your password to continue",
	})

	if reasoner.adjustCalls != 1 {
		t.Errorf("page text should trigger reasoning, got %d calls", reasoner.adjustCalls)
	}
}

func TestAnalyzeURLAnchorTextForcesReasoningAndReachesDetectors(t *testing.T) {
	reasoner := &stubReasoner{adjustment: &reason.URLAdjustment{Adjustment: 0, Analysis: "looks fine"}}
	a, det := testAnalyzer(0, &stubBlacklist{}, reasoner)

	a.AnalyzeURL(context.Background(), URLRequest{
		URL:        "https://quiet.example.net/",
		AnchorText: "PayPal Support",
		DOMSnippet: `<a href="https://quiet.example.net/">PayPal Support</a>`,
	})

	if reasoner.adjustCalls != 1 {
		t.Errorf("anchor text should trigger reasoning, got %d calls", reasoner.adjustCalls)
	}
	if det.seen == nil || det.seen.AnchorText != "PayPal Support" {
		t.Errorf("anchor text should reach the detectors, got %+v", det.seen)
	}
}

func TestAnalyzeURLSurvivesReasoningFailure(t *testing.T) {
	reasoner := &stubReasoner{adjustErr: errors.New("all models exhausted")}
	a, _ := testAnalyzer(30, &stubBlacklist{}, reasoner)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://suspicious.xyz/"})

	if res.Score != 30 || res.Verdict != detect.VerdictSafe {
		t.Errorf("heuristic verdict should stand when reasoning fails: %d/%s", res.Score, res.Verdict)
	}
}

func TestAnalyzeEmailParsesHeadersAndLinks(t *testing.T) {
	a, det := testAnalyzer(0, nil, nil)

	headers := "Return-Path: <bounce@mailer.xyz>\nFrom: Support <support@paypal.com>\n"
	body := "Click https://evil.xyz/verify now."
	a.AnalyzeEmail(context.Background(), EmailRequest{Subject: "Alert", Body: body, RawHeaders: headers})

	if det.seen == nil {
		t.Fatal("detector never ran")
	}
	if det.seen.FromAddr != "support@paypal.com" || det.seen.ReturnPath != "bounce@mailer.xyz" {
		t.Errorf("envelope parsing: from=%q return=%q", det.seen.FromAddr, det.seen.ReturnPath)
	}
	if len(det.seen.Links) != 1 || !strings.Contains(det.seen.Links[0], "evil.xyz") {
		t.Errorf("link extraction: %v", det.seen.Links)
	}
}

func TestAnalyzeEmailPsychologyAndDraft(t *testing.T) {
	reasoner := &stubReasoner{
		report: &reason.PsychologyReport{
			Triggers: []reason.PsychTrigger{{Text: "act now", Category: "urgency"}},
			Summary:  "Urgency pressure throughout.",
		},
		draft: "This email shows signs of phishing. Do not click its links.",
	}
	a, _ := testAnalyzer(50, nil, reasoner)

	res := a.AnalyzeEmail(context.Background(), EmailRequest{Subject: "Account locked", Body: "act now"})

	if res.Score != 70 {
		t.Errorf("score = %d, want 50 heuristic + 20 psychology", res.Score)
	}
	if res.Verdict != detect.VerdictSuspicious {
		t.Errorf("verdict = %s, want SUSPICIOUS at exactly 70", res.Verdict)
	}
	if res.DraftReply == "" {
		t.Error("risky emails should carry a drafted warning")
	}
	found := false
	for _, s := range res.Signals {
		if s.Kind == detect.KindPsychology && s.Points == 20 {
			found = true
		}
	}
	if !found {
		t.Error("psychology findings should appear as a signal")
	}
}

func TestAnalyzeEmailNoTriggersNoBonus(t *testing.T) {
	reasoner := &stubReasoner{report: &reason.PsychologyReport{}}
	a, _ := testAnalyzer(10, nil, reasoner)

	res := a.AnalyzeEmail(context.Background(), EmailRequest{Subject: "Lunch?", Body: "Pizza on Friday?"})

	if res.Score != 10 {
		t.Errorf("score = %d, psychology without triggers must not add points", res.Score)
	}
	if res.DraftReply != "" {
		t.Error("safe emails should not get a drafted warning")
	}
}

type panickingResolver struct{}

func (panickingResolver) Resolve(context.Context, string) intel.Verdict {
	panic("resolver blew up")
}

func TestAnalyzeURLRecoversToErrorVerdict(t *testing.T) {
	a, _ := testAnalyzer(10, panickingResolver{}, nil)

	res := a.AnalyzeURL(context.Background(), URLRequest{URL: "https://anything.net/"})

	if res.Verdict != detect.VerdictError || res.Score != 0 {
		t.Errorf("panic should yield ERROR/0, got %s/%d", res.Verdict, res.Score)
	}
	if res.ID == "" || res.Target != "https://anything.net/" {
		t.Errorf("error payload should keep its identity fields: %+v", res)
	}
	if len(res.Narrative) != 1 || !strings.Contains(res.Narrative[0], "resolver blew up") {
		t.Errorf("error payload should name the failure cause, got %q", res.Narrative)
	}
	if len(res.Signals) != 0 {
		t.Errorf("error payload should not carry partial signals: %+v", res.Signals)
	}
}
