package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinelmark/phishmark/pkg/lexicon"
)

// The raw urgency score is 20 points per distinct trigger, capped at 100.
// That raw score would drown the other detectors, so fusion sees a fixed
// reweighted contribution instead: page text carrying pressure language is
// rarer and more damning than an email doing the same.
const (
	urgencyPointsPerTerm = 20
	urgencyRawCap        = 100
	urgencyURLPoints     = 45
	urgencyEmailPoints   = 30
)

// UrgencyDetector scans visible text for pressure-tactic vocabulary.
type UrgencyDetector struct{}

// NewUrgencyDetector builds the detector.
func NewUrgencyDetector() *UrgencyDetector {
	return &UrgencyDetector{}
}

func (d *UrgencyDetector) Name() string { return "urgency" }

func (d *UrgencyDetector) AppliesTo(Mode) bool { return true }

func (d *UrgencyDetector) Detect(_ context.Context, in *Input) ([]Signal, error) {
	var text string
	if in.Mode == ModeEmail {
		text = in.Subject + "\n" + in.Body
	} else {
		text = strings.Join([]string{in.AnchorText, in.PageContext, in.PageText}, "\n")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	triggers := lexicon.FindUrgencyTriggers(text)
	if len(triggers) == 0 {
		return nil, nil
	}

	raw := len(triggers) * urgencyPointsPerTerm
	if raw > urgencyRawCap {
		raw = urgencyRawCap
	}
	points := urgencyURLPoints
	if in.Mode == ModeEmail {
		points = urgencyEmailPoints
	}

	sig := NewSignal(KindUrgency, SeverityMedium, points,
		fmt.Sprintf("pressure language detected: %s", strings.Join(triggers, ", "))).
		WithDetail("triggers", triggers).
		WithDetail("raw_score", raw)
	return []Signal{sig}, nil
}
