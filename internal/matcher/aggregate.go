package matcher

import "sort"

// MaxDisplayMatches bounds the per-slot match list kept for display. All
// matches at or above the threshold still count toward coverage regardless
// of rank.
const MaxDisplayMatches = 10

// Aggregator merges raw strategy outputs into one SlotGroundingResult.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate deduplicates matches by obligation (keeping the highest
// confidence, breaking ties by method rank), sorts descending, and computes
// BestMatch and IsGrounded against the acceptance threshold.
func (a *Aggregator) Aggregate(slotID string, raw []Match, threshold float64) SlotGroundingResult {
	best := make(map[string]Match, len(raw))
	for _, m := range raw {
		cur, ok := best[m.ObligationID]
		if !ok || betterMatch(m, cur) {
			best[m.ObligationID] = m
		}
	}

	all := make([]Match, 0, len(best))
	for _, m := range best {
		all = append(all, m)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Confidence != all[j].Confidence {
			return all[i].Confidence > all[j].Confidence
		}
		if all[i].Method.Rank() != all[j].Method.Rank() {
			return all[i].Method.Rank() < all[j].Method.Rank()
		}
		return all[i].ObligationID < all[j].ObligationID
	})

	display := all
	if len(display) > MaxDisplayMatches {
		display = display[:MaxDisplayMatches]
	}

	result := SlotGroundingResult{
		SlotID:     slotID,
		Matches:    display,
		AllMatches: all,
	}
	if len(all) > 0 && all[0].Confidence >= threshold {
		top := all[0]
		result.BestMatch = &top
		result.IsGrounded = true
	}
	return result
}

// betterMatch reports whether a should replace b as the surviving match for
// an obligation: higher confidence wins, equal confidence falls back to the
// method tie-break order.
func betterMatch(a, b Match) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Method.Rank() < b.Method.Rank()
}
