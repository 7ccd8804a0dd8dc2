package grounding

import (
	"sort"

	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
)

// DefaultConfidenceThreshold is the acceptance threshold for a match to
// count toward coverage.
const DefaultConfidenceThreshold = 0.6

// Status is the terminal state of a grounding validation run.
type Status string

const (
	// StatusPass allows downstream document generation.
	StatusPass Status = "PASS"

	// StatusWarning allows generation but flags coverage concerns.
	StatusWarning Status = "WARNING"

	// StatusBlocked forbids downstream generation. The gate is authoritative.
	StatusBlocked Status = "BLOCKED"
)

// UncoveredObligation is a mandatory obligation with no accepted match,
// annotated with the reason it is uncovered.
type UncoveredObligation struct {
	Obligation obligation.Obligation `json:"obligation"`
	Reason     string                `json:"reason"`
}

// Result is the full outcome of a grounding validation run. It is
// serializable for persistence and audit emission.
type Result struct {
	// TemplateID identifies the validated template.
	TemplateID string `json:"template_id"`

	// Status is the gate decision.
	Status Status `json:"status"`

	// CoveredObligationIDs lists mandatory obligations with at least one
	// match at or above the acceptance threshold, sorted.
	CoveredObligationIDs []string `json:"covered_obligation_ids"`

	// UncoveredObligations lists mandatory obligations without coverage.
	UncoveredObligations []UncoveredObligation `json:"uncovered_obligations,omitempty"`

	// ComplianceScore is 0-100: covered mandatory obligations over all
	// mandatory obligations, 100 when there are none (vacuous compliance).
	ComplianceScore int `json:"compliance_score"`

	// BlockingErrors is non-empty exactly when Status is BLOCKED. Messages
	// are self-sufficient: resolvable without consulting logs.
	BlockingErrors []string `json:"blocking_errors,omitempty"`

	// Warnings lists non-blocking coverage concerns.
	Warnings []string `json:"warnings,omitempty"`

	// SlotResults holds the per-slot grounding outcomes in input order.
	SlotResults []matcher.SlotGroundingResult `json:"slot_results"`
}

// coveredIDs computes the sorted union of obligation IDs matched at or above
// the threshold across all slot results. Every accepted match counts, not
// just each slot's best.
func coveredIDs(slotResults []matcher.SlotGroundingResult, threshold float64) []string {
	set := make(map[string]struct{})
	for _, res := range slotResults {
		for _, m := range res.AllMatches {
			if m.Confidence >= threshold {
				set[m.ObligationID] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// complianceScore is round(100 * covered / mandatory), 100 for zero
// mandatory obligations.
func complianceScore(covered, mandatory int) int {
	if mandatory == 0 {
		return 100
	}
	return int(float64(covered)/float64(mandatory)*100 + 0.5)
}
