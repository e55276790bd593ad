package detect

import (
	"fmt"

	"github.com/sentinelmark/phishmark/pkg/config"
)

// Verdict is the discrete risk classification derived from the score
type Verdict string

const (
	VerdictSafe          Verdict = "SAFE"
	VerdictSuspicious    Verdict = "SUSPICIOUS"
	VerdictMalicious     Verdict = "MALICIOUS"
	VerdictVerifiedPhish Verdict = "VERIFIED_PHISH" // confirmed by an external authority
	VerdictError         Verdict = "ERROR"          // analysis itself failed
)

// Profile maps scores to verdicts. URLs get a slightly higher bar because
// page heuristics fire harder than email heuristics.
type Profile struct {
	MaliciousAbove  int
	SuspiciousAbove int
}

var (
	urlProfile   = Profile{MaliciousAbove: 75, SuspiciousAbove: 45}
	emailProfile = Profile{MaliciousAbove: 70, SuspiciousAbove: 40}
)

// ProfileFor returns the verdict thresholds for a mode.
func ProfileFor(mode Mode) Profile {
	if mode == ModeEmail {
		return emailProfile
	}
	return urlProfile
}

// Classify maps a bounded score to a verdict under the profile.
func (p Profile) Classify(score int) Verdict {
	switch {
	case score > p.MaliciousAbove:
		return VerdictMalicious
	case score > p.SuspiciousAbove:
		return VerdictSuspicious
	default:
		return VerdictSafe
	}
}

const failClosedPoints = 15

// Fusion is the fused view of one analysis: the bounded score, the verdict,
// and the ordered signal stream that produced them.
type Fusion struct {
	Score           int      `json:"score"`
	Verdict         Verdict  `json:"verdict"`
	Signals         []Signal `json:"signals"`
	FailedDetectors []string `json:"failed_detectors,omitempty"`
	Narrative       []string `json:"narrative"`
}

// Fuse folds the outcome stream into a score and verdict. Outcomes are
// consumed in dispatch order and extra signals (reasoning, psychology)
// append after them, so the result is deterministic for a given input.
//
// blacklisted forces the ceiling: external confirmation dominates every
// heuristic, including negative reasoning adjustments.
func Fuse(mode Mode, outcomes []Outcome, extra []Signal, failureMode config.FailureMode, blacklisted bool) Fusion {
	f := Fusion{}

	for _, o := range outcomes {
		if o.Failed {
			f.FailedDetectors = append(f.FailedDetectors, o.Detector)
			if failureMode == config.FailClosed {
				f.Signals = append(f.Signals, NewSignal(KindDetectorFailure, SeverityMedium, failClosedPoints,
					fmt.Sprintf("%s unable to evaluate", o.Detector)).
					WithDetail("reason", o.FailureReason))
			}
			continue
		}
		f.Signals = append(f.Signals, o.Signals...)
	}
	f.Signals = append(f.Signals, extra...)

	total := 0
	for _, s := range f.Signals {
		total += s.Points
	}
	f.Score = clampScore(total)

	if blacklisted {
		sig := NewSignal(KindThreatIntel, SeverityCritical, 100,
			"URL confirmed malicious by threat intelligence")
		f.Signals = append([]Signal{sig}, f.Signals...)
		f.Score = 100
		f.Verdict = VerdictVerifiedPhish
	} else {
		f.Verdict = ProfileFor(mode).Classify(f.Score)
	}

	f.Narrative = buildNarrative(f.Signals)
	return f
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// buildNarrative collects the scoring signal messages in append order, one
// entry per finding. Zero-point informational signals are omitted; a clean
// input yields an empty list.
func buildNarrative(signals []Signal) []string {
	var parts []string
	for _, s := range signals {
		if s.Points != 0 && s.Message != "" {
			parts = append(parts, s.Message)
		}
	}
	return parts
}
