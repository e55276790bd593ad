package detect

import (
	"strings"
	"testing"

	"github.com/sentinelmark/phishmark/pkg/config"
)

func outcome(name string, points ...int) Outcome {
	o := Outcome{Detector: name}
	for _, p := range points {
		o.Signals = append(o.Signals, NewSignal(KindUrgency, SeverityMedium, p, name+" finding"))
	}
	return o
}

func failedOutcome(name string) Outcome {
	return Outcome{Detector: name, Failed: true, FailureReason: "upstream timeout"}
}

func TestFuseSumsAndClassifies(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		points  []int
		score   int
		verdict Verdict
	}{
		{"url safe", ModeURL, []int{10, 20}, 30, VerdictSafe},
		{"url boundary stays suspicious", ModeURL, []int{45, 30}, 75, VerdictSuspicious},
		{"url malicious", ModeURL, []int{60, 30}, 90, VerdictMalicious},
		{"url clamped at 100", ModeURL, []int{90, 90, 90}, 100, VerdictMalicious},
		{"email suspicious above 40", ModeEmail, []int{41}, 41, VerdictSuspicious},
		{"email malicious above 70", ModeEmail, []int{40, 35}, 75, VerdictMalicious},
		{"negative adjustment floors at 0", ModeURL, []int{10, -30}, 0, VerdictSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Fuse(tt.mode, []Outcome{outcome("d", tt.points...)}, nil, config.FailOpen, false)
			if f.Score != tt.score || f.Verdict != tt.verdict {
				t.Errorf("Fuse = %d/%s, want %d/%s", f.Score, f.Verdict, tt.score, tt.verdict)
			}
		})
	}
}

func TestFuseBlacklistOverrideDominates(t *testing.T) {
	// Even a strongly negative reasoning adjustment cannot rescue a URL an
	// external authority confirmed.
	extra := []Signal{NewSignal(KindAIReasoning, SeverityInfo, -10, "model found it benign")}
	f := Fuse(ModeURL, []Outcome{outcome("d", 5)}, extra, config.FailOpen, true)

	if f.Score != 100 || f.Verdict != VerdictVerifiedPhish {
		t.Errorf("blacklist override: %d/%s, want 100/VERIFIED_PHISH", f.Score, f.Verdict)
	}
	if f.Signals[0].Kind != KindThreatIntel {
		t.Error("threat intel signal should lead the stream")
	}
}

func TestFuseFailOpenIgnoresFailures(t *testing.T) {
	f := Fuse(ModeURL, []Outcome{outcome("ok", 20), failedOutcome("down")}, nil, config.FailOpen, false)
	if f.Score != 20 {
		t.Errorf("fail-open score = %d, want 20", f.Score)
	}
	if len(f.FailedDetectors) != 1 || f.FailedDetectors[0] != "down" {
		t.Errorf("failed detectors = %v", f.FailedDetectors)
	}
}

func TestFuseFailClosedCountsFailures(t *testing.T) {
	f := Fuse(ModeURL, []Outcome{outcome("ok", 20), failedOutcome("down")}, nil, config.FailClosed, false)
	if f.Score != 35 {
		t.Errorf("fail-closed score = %d, want 20+15", f.Score)
	}
	found := false
	for _, s := range f.Signals {
		if s.Kind == KindDetectorFailure && strings.Contains(s.Message, "down") {
			found = true
		}
	}
	if !found {
		t.Error("fail-closed should surface the failure as a signal")
	}
}

func TestFuseDeterministic(t *testing.T) {
	outcomes := []Outcome{outcome("a", 10), outcome("b", 25), failedOutcome("c")}
	first := Fuse(ModeEmail, outcomes, nil, config.FailClosed, false)
	for range 5 {
		again := Fuse(ModeEmail, outcomes, nil, config.FailClosed, false)
		if again.Score != first.Score ||
			strings.Join(again.Narrative, "|") != strings.Join(first.Narrative, "|") {
			t.Fatalf("fusion not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestNarrativeIsAnOrderedList(t *testing.T) {
	f := Fuse(ModeURL, []Outcome{outcome("a", 10), outcome("b", 20)}, []Signal{
		NewSignal(KindHeaderForensics, SeverityInfo, 0, "informational only"),
	}, config.FailOpen, false)

	if len(f.Narrative) != 2 {
		t.Fatalf("narrative should hold one entry per scoring signal: %q", f.Narrative)
	}
	if f.Narrative[0] != "a finding" || f.Narrative[1] != "b finding" {
		t.Errorf("narrative entries out of scoring order: %q", f.Narrative)
	}
	for _, line := range f.Narrative {
		if strings.Contains(line, "informational only") {
			t.Errorf("narrative should omit zero-point signals: %q", f.Narrative)
		}
	}

	empty := Fuse(ModeURL, nil, nil, config.FailOpen, false)
	if len(empty.Narrative) != 0 {
		t.Errorf("clean input should yield an empty narrative, got %q", empty.Narrative)
	}
}

func TestProfileBoundaries(t *testing.T) {
	p := ProfileFor(ModeURL)
	if p.Classify(75) != VerdictSuspicious || p.Classify(76) != VerdictMalicious {
		t.Error("URL malicious boundary should be exclusive at 75")
	}
	if p.Classify(45) != VerdictSafe || p.Classify(46) != VerdictSuspicious {
		t.Error("URL suspicious boundary should be exclusive at 45")
	}

	pe := ProfileFor(ModeEmail)
	if pe.Classify(70) != VerdictSuspicious || pe.Classify(71) != VerdictMalicious {
		t.Error("email malicious boundary should be exclusive at 70")
	}
}
