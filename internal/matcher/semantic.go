package matcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/embeddings"
	"github.com/complykit/groundd/internal/obligation"
)

// SemanticMatcher matches slots to obligations by embedding similarity.
//
// Only cosine similarity >= 0.5 produces a match; confidence maps
// [0.5,1.0] -> [0.4,0.85] linearly, keeping semantic evidence below
// structural and citation evidence. Single-pair embedding failures are
// logged and skipped, never fatal.
type SemanticMatcher struct {
	provider embeddings.Provider
	logger   *zap.Logger
}

// NewSemanticMatcher creates a semantic matcher over the given provider.
// The provider is normally a CachingProvider so obligation texts are embedded
// once per process, not once per slot.
func NewSemanticMatcher(provider embeddings.Provider, logger *zap.Logger) *SemanticMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticMatcher{provider: provider, logger: logger}
}

// Name identifies the strategy.
func (m *SemanticMatcher) Name() string { return string(MethodSemantic) }

// Match embeds the slot text and each obligation text and scores cosine
// similarity.
func (m *SemanticMatcher) Match(ctx context.Context, slot obligation.Slot, obligations []obligation.Obligation) ([]Match, error) {
	slotVec, err := m.provider.Embed(ctx, slotText(slot))
	if err != nil {
		m.logger.Warn("slot embedding failed, skipping semantic matching for slot",
			zap.String("slot_id", slot.SlotID),
			zap.Error(err),
		)
		return nil, nil
	}

	var matches []Match
	for _, obl := range obligations {
		oblVec, err := m.provider.Embed(ctx, obligationText(obl))
		if err != nil {
			m.logger.Warn("obligation embedding failed, skipping pair",
				zap.String("slot_id", slot.SlotID),
				zap.String("obligation_id", obl.ID),
				zap.Error(err),
			)
			continue
		}

		similarity := embeddings.CosineSimilarity(slotVec, oblVec)
		if similarity < 0.5 {
			continue
		}

		confidence := 0.4 + (similarity-0.5)*0.9
		matches = append(matches, Match{
			SlotID:       slot.SlotID,
			ObligationID: obl.ID,
			Confidence:   confidence,
			Method:       MethodSemantic,
			Reasoning:    fmt.Sprintf("embedding similarity %.2f", similarity),
		})
	}
	return matches, nil
}

// slotText builds the embedding input for a slot.
func slotText(slot obligation.Slot) string {
	parts := []string{slot.Name}
	if slot.Description != "" {
		parts = append(parts, slot.Description)
	}
	if len(slot.EvidenceRequirements) > 0 {
		parts = append(parts, "Evidence: "+strings.Join(slot.EvidenceRequirements, ", "))
	}
	return strings.Join(parts, "\n")
}

// obligationText builds the embedding input for an obligation.
func obligationText(obl obligation.Obligation) string {
	parts := []string{obl.Title}
	if obl.Text != "" {
		parts = append(parts, obl.Text)
	}
	if len(obl.RequiredEvidenceTypes) > 0 {
		parts = append(parts, "Evidence: "+strings.Join(obl.RequiredEvidenceTypes, ", "))
	}
	return strings.Join(parts, "\n")
}
