package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/complykit/groundd/internal/obligation"
)

// EvidenceOverlapMatcher matches slots to obligations by intersecting their
// evidence-type sets. Structural overlap is the most reliable automated
// signal, hence the high confidence floor.
type EvidenceOverlapMatcher struct{}

// NewEvidenceOverlapMatcher creates an evidence-overlap matcher.
func NewEvidenceOverlapMatcher() *EvidenceOverlapMatcher {
	return &EvidenceOverlapMatcher{}
}

// Name identifies the strategy.
func (m *EvidenceOverlapMatcher) Name() string { return string(MethodEvidenceOverlap) }

// Match emits one match per obligation whose required evidence types
// intersect the slot's. Confidence is 0.5 + overlapRatio*0.45 capped at 0.95,
// where overlapRatio = |intersection| / max(|slot set|, |obligation set|).
func (m *EvidenceOverlapMatcher) Match(_ context.Context, slot obligation.Slot, obligations []obligation.Obligation) ([]Match, error) {
	if len(slot.EvidenceRequirements) == 0 {
		return nil, nil
	}
	slotSet := obligation.EvidenceSet(slot.EvidenceRequirements)

	var matches []Match
	for _, obl := range obligations {
		if len(obl.RequiredEvidenceTypes) == 0 {
			continue
		}

		var shared []string
		for _, t := range obl.RequiredEvidenceTypes {
			if _, ok := slotSet[t]; ok {
				shared = append(shared, t)
			}
		}
		if len(shared) == 0 {
			continue
		}

		denom := len(slot.EvidenceRequirements)
		if len(obl.RequiredEvidenceTypes) > denom {
			denom = len(obl.RequiredEvidenceTypes)
		}
		overlapRatio := float64(len(shared)) / float64(denom)

		confidence := 0.5 + overlapRatio*0.45
		if confidence > 0.95 {
			confidence = 0.95
		}

		matches = append(matches, Match{
			SlotID:       slot.SlotID,
			ObligationID: obl.ID,
			Confidence:   confidence,
			Method:       MethodEvidenceOverlap,
			Reasoning: fmt.Sprintf("shared evidence types: %s (overlap %.0f%%)",
				strings.Join(shared, ", "), overlapRatio*100),
		})
	}
	return matches, nil
}
