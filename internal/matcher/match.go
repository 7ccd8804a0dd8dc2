package matcher

import (
	"context"

	"github.com/complykit/groundd/internal/obligation"
)

// Method identifies the strategy that produced a match. The set is closed;
// tie-break ordering between methods is defined by methodRank, not by string
// comparison.
type Method string

const (
	MethodManual          Method = "manual"
	MethodEvidenceOverlap Method = "evidence_overlap"
	MethodCitation        Method = "citation"
	MethodSemantic        Method = "semantic"
	MethodLLM             Method = "llm"
)

// methodRank orders methods for tie-breaking when two matches to the same
// obligation carry equal confidence. Lower rank wins.
var methodRank = map[Method]int{
	MethodManual:          0,
	MethodEvidenceOverlap: 1,
	MethodCitation:        2,
	MethodSemantic:        3,
	MethodLLM:             4,
}

// Rank returns the tie-break rank of the method. Unknown methods sort last.
func (m Method) Rank() int {
	if r, ok := methodRank[m]; ok {
		return r
	}
	return len(methodRank)
}

// Valid reports whether the method is one of the closed set.
func (m Method) Valid() bool {
	_, ok := methodRank[m]
	return ok
}

// Match is a confidence-scored correspondence between a slot and an
// obligation.
type Match struct {
	// SlotID identifies the slot.
	SlotID string `json:"slot_id"`

	// ObligationID identifies the obligation.
	ObligationID string `json:"obligation_id"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// Method is the strategy that produced the match.
	Method Method `json:"method"`

	// Reasoning explains the match in human-readable terms.
	Reasoning string `json:"reasoning"`
}

// SlotGroundingResult is the aggregated matching outcome for one slot.
type SlotGroundingResult struct {
	// SlotID identifies the slot.
	SlotID string `json:"slot_id"`

	// Matches is the deduplicated match list, descending by confidence,
	// truncated to MaxDisplayMatches for display. Coverage computation uses
	// AllMatches, not this list.
	Matches []Match `json:"matches"`

	// AllMatches is the full deduplicated list before truncation. Every match
	// at or above the acceptance threshold counts toward obligation coverage
	// regardless of rank.
	AllMatches []Match `json:"-"`

	// BestMatch is the top-ranked match if it meets the acceptance threshold.
	BestMatch *Match `json:"best_match,omitempty"`

	// IsGrounded reports whether BestMatch is set.
	IsGrounded bool `json:"is_grounded"`
}

// Strategy is a single slot-obligation matching strategy.
//
// Implementations return zero or more candidate matches for the slot against
// the supplied obligation snapshot. Provider-backed strategies use ctx for
// I/O; pure strategies ignore it.
type Strategy interface {
	// Name identifies the strategy in logs and warnings.
	Name() string

	// Match scores the slot against the obligations.
	Match(ctx context.Context, slot obligation.Slot, obligations []obligation.Obligation) ([]Match, error)
}
