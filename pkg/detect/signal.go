// Package detect contains the detector fleet and the fan-out engine that
// runs it. Every detector reads the same immutable Input and emits zero or
// more weighted Signals; fusion turns the ordered signal stream into a
// bounded risk score and a verdict.
package detect

// Kind identifies which detection concern produced a signal
type Kind string

const (
	KindImpersonation   Kind = "IMPERSONATION"     // brand name abused by a look-alike host
	KindHomograph       Kind = "HOMOGRAPH_ATTACK"  // punycode or mixed-script spoofing
	KindThreatIntel     Kind = "THREAT_INTEL"      // confirmed by an external blacklist
	KindDomainAge       Kind = "DOMAIN_AGE"        // freshly registered domain
	KindDNSCheck        Kind = "DNS_CHECK"         // missing mail infrastructure
	KindVisualSpoof     Kind = "VISUAL_SPOOF"      // page or favicon imitates a brand
	KindUrgency         Kind = "URGENCY"           // pressure-tactic language
	KindIPAddress       Kind = "IP_ADDRESS"        // raw IP instead of a hostname
	KindHeaderForensics Kind = "HEADER_FORENSICS"  // envelope/header inconsistencies
	KindAIReasoning     Kind = "AI_REASONING"      // LLM contextual adjustment
	KindPsychology      Kind = "PSYCHOLOGY"        // social-engineering tactics
	KindDetectorFailure Kind = "DETECTOR_FAILURE"  // fail-closed placeholder signal
)

// Severity grades how alarming a single signal is on its own
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Signal is one finding from one detector. Points are the additive score
// contribution; fusion sums them and clamps the total to [0, 100].
type Signal struct {
	Kind     Kind           `json:"kind"`
	Severity Severity       `json:"severity"`
	Points   int            `json:"points"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// NewSignal creates a signal with an empty details map.
func NewSignal(kind Kind, severity Severity, points int, message string) Signal {
	return Signal{
		Kind:     kind,
		Severity: severity,
		Points:   points,
		Message:  message,
		Details:  make(map[string]any),
	}
}

// WithDetail attaches a key-value detail and returns the signal for chaining
// at construction sites.
func (s Signal) WithDetail(key string, value any) Signal {
	if s.Details == nil {
		s.Details = make(map[string]any)
	}
	s.Details[key] = value
	return s
}

// Outcome is the result of one detector run inside the fan-out. A failed
// outcome carries no signals; how failure counts toward the score is the
// failure-mode policy's decision, not the detector's.
type Outcome struct {
	Detector      string   `json:"detector"`
	Signals       []Signal `json:"signals,omitempty"`
	Failed        bool     `json:"failed"`
	FailureReason string   `json:"failure_reason,omitempty"`
	LatencyMs     float64  `json:"latency_ms"`
}

// Points sums the outcome's signal contributions.
func (o *Outcome) Points() int {
	total := 0
	for _, s := range o.Signals {
		total += s.Points
	}
	return total
}
