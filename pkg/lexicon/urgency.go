package lexicon

import (
	"sort"
	"strings"
)

// urgencyTerms is the pressure-tactic vocabulary scanned in subjects and
// bodies. Matching is case-insensitive substring; "unauthorized" therefore
// also catches "unauthorised access" style variants via both spellings.
var urgencyTerms = []string{
	"immediately",
	"urgent",
	"24 hours",
	"suspended",
	"verify",
	"unauthorized",
	"unauthorised",
	"locked",
	"breach",
	"password",
	"expire",
	"action required",
	"limit",
	"wallet",
	"terminate",
	"deactivate",
	"compliance",
}

// UrgencyTerms returns a copy of the scanned vocabulary, for display.
func UrgencyTerms() []string {
	out := make([]string, len(urgencyTerms))
	copy(out, urgencyTerms)
	return out
}

// FindUrgencyTriggers returns the urgency terms present in text, ordered by
// first occurrence. Each term is reported once no matter how often it repeats.
func FindUrgencyTriggers(text string) []string {
	lower := strings.ToLower(text)

	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	for _, term := range urgencyTerms {
		if idx := strings.Index(lower, term); idx >= 0 {
			hits = append(hits, hit{term: term, pos: idx})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	triggers := make([]string, 0, len(hits))
	for _, h := range hits {
		triggers = append(triggers, h.term)
	}
	return triggers
}
