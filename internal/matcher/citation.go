package matcher

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/complykit/groundd/internal/obligation"
)

// citationTokenPattern extracts normative reference tokens: "article N",
// "art. N", "section N", "annex <roman or digit>".
var citationTokenPattern = regexp.MustCompile(`(?i)\b(?:(article|art\.?|section)\s+(\d+[a-z]?)|(annex)\s+([ivxlcdm]+|\d+))\b`)

// CitationMatcher matches slots to obligations by comparing the slot's
// regulatory reference against the obligation's source citation.
//
// Two independent signals are emitted: whole-string comparison (equality
// 0.95, containment 0.80) and citation-token overlap (0.75). A pair can
// produce both; the aggregator resolves to the maximum.
type CitationMatcher struct{}

// NewCitationMatcher creates a citation matcher.
func NewCitationMatcher() *CitationMatcher {
	return &CitationMatcher{}
}

// Name identifies the strategy.
func (m *CitationMatcher) Name() string { return string(MethodCitation) }

// Match scores the slot against each obligation holding a source citation.
// Slots without a regulatory reference produce no matches.
func (m *CitationMatcher) Match(_ context.Context, slot obligation.Slot, obligations []obligation.Obligation) ([]Match, error) {
	ref := strings.TrimSpace(slot.RegulatoryReference)
	if ref == "" {
		return nil, nil
	}
	refLower := strings.ToLower(ref)
	refTokens := extractCitationTokens(ref)

	var matches []Match
	for _, obl := range obligations {
		cite := strings.TrimSpace(obl.SourceCitation)
		if cite == "" {
			continue
		}
		citeLower := strings.ToLower(cite)

		switch {
		case refLower == citeLower:
			matches = append(matches, Match{
				SlotID:       slot.SlotID,
				ObligationID: obl.ID,
				Confidence:   0.95,
				Method:       MethodCitation,
				Reasoning:    fmt.Sprintf("citation %q matches exactly", cite),
			})
		case strings.Contains(refLower, citeLower) || strings.Contains(citeLower, refLower):
			matches = append(matches, Match{
				SlotID:       slot.SlotID,
				ObligationID: obl.ID,
				Confidence:   0.80,
				Method:       MethodCitation,
				Reasoning:    fmt.Sprintf("citation %q contains or is contained by reference %q", cite, ref),
			})
		}

		// Token overlap is an independent signal, not mutually exclusive with
		// the whole-string match above.
		if shared := tokenOverlap(refTokens, extractCitationTokens(cite)); len(shared) > 0 {
			matches = append(matches, Match{
				SlotID:       slot.SlotID,
				ObligationID: obl.ID,
				Confidence:   0.75,
				Method:       MethodCitation,
				Reasoning:    fmt.Sprintf("shared citation tokens: %s", strings.Join(shared, ", ")),
			})
		}
	}
	return matches, nil
}

// extractCitationTokens returns normalized "kind number" tokens found in the
// string. "art." and "article" normalize to the same token kind.
func extractCitationTokens(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, m := range citationTokenPattern.FindAllStringSubmatch(s, -1) {
		var kind, num string
		if m[1] != "" {
			kind, num = strings.ToLower(m[1]), strings.ToLower(m[2])
			if strings.HasPrefix(kind, "art") {
				kind = "article"
			}
		} else {
			kind, num = "annex", strings.ToLower(m[4])
		}
		tokens[kind+" "+num] = struct{}{}
	}
	return tokens
}

func tokenOverlap(a, b map[string]struct{}) []string {
	var shared []string
	for t := range a {
		if _, ok := b[t]; ok {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}
