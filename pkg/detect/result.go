package detect

import (
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmark/phishmark/pkg/intel"
	"github.com/sentinelmark/phishmark/pkg/netinfo"
	"github.com/sentinelmark/phishmark/pkg/reason"
)

// AnalysisResult is the full verdict payload returned to callers.
type AnalysisResult struct {
	ID        string       `json:"id"`
	Mode      Mode         `json:"mode"`
	Target    string       `json:"target"` // the URL, or the email subject
	Score     int          `json:"score"`
	Verdict   Verdict      `json:"verdict"`
	Status    intel.Status `json:"status"` // blacklist-layer status
	Signals   []Signal     `json:"signals"`
	Narrative []string     `json:"narrative"`

	// DomainAge carries the registration details when the age check fired.
	DomainAge *netinfo.DomainAge `json:"domain_age,omitempty"`
	// Triggers lists the pressure phrases found by the urgency lexicon and
	// the psychology pass, in detection order.
	Triggers []string `json:"triggers,omitempty"`

	// Explanation is the LLM's plain-language summary, when reasoning ran.
	Explanation string `json:"explanation,omitempty"`
	// Intent is the LLM's judged attack intent, when reasoning ran.
	Intent string `json:"intent,omitempty"`
	// DraftReply is the suggested user guidance for risky emails.
	DraftReply string `json:"draft_reply,omitempty"`

	FailedDetectors []string  `json:"failed_detectors,omitempty"`
	ElapsedMs       float64   `json:"elapsed_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewResult seeds a result with identity and timing fields.
func NewResult(mode Mode, target string) *AnalysisResult {
	return &AnalysisResult{
		ID:        uuid.NewString(),
		Mode:      mode,
		Target:    target,
		Status:    intel.StatusClean,
		CreatedAt: time.Now().UTC(),
	}
}

// ApplyFusion copies the fused score, verdict and signal stream in, and
// lifts domain-age and trigger details into their first-class fields.
func (r *AnalysisResult) ApplyFusion(f Fusion) {
	r.Score = f.Score
	r.Verdict = f.Verdict
	r.Signals = f.Signals
	r.Narrative = f.Narrative
	r.FailedDetectors = f.FailedDetectors

	for _, s := range f.Signals {
		switch s.Kind {
		case KindDomainAge:
			r.DomainAge = domainAgeFromDetails(s.Details)
		case KindUrgency:
			if ts, ok := s.Details["triggers"].([]string); ok {
				r.Triggers = append(r.Triggers, ts...)
			}
		case KindPsychology:
			if ts, ok := s.Details["triggers"].([]reason.PsychTrigger); ok {
				for _, t := range ts {
					r.Triggers = append(r.Triggers, t.Text)
				}
			}
		}
	}
}

func domainAgeFromDetails(d map[string]any) *netinfo.DomainAge {
	age := &netinfo.DomainAge{}
	if v, ok := d["domain"].(string); ok {
		age.Domain = v
	}
	if v, ok := d["age_days"].(int); ok {
		age.AgeDays = v
	}
	if v, ok := d["created_at"].(time.Time); ok {
		age.CreatedAt = v
	}
	if v, ok := d["registrar"].(string); ok {
		age.Registrar = v
	}
	return age
}
