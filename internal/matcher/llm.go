package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/llm"
	"github.com/complykit/groundd/internal/obligation"
)

// MaxLLMCandidates bounds the obligation list sent to the completion
// provider per slot.
const MaxLLMCandidates = 15

// llmConfidenceCap bounds model-reported confidence. Model judgment is
// treated as lower-trust than structural or citation evidence.
const llmConfidenceCap = 0.85

const llmSystemPrompt = `You analyze compliance-document templates. Given a template slot and a list of regulatory obligations, identify which obligations the slot's content would satisfy or report against. Respond with a single JSON object of the form {"matches": [{"obligation_id": string, "confidence": number, "reasoning": string}]}. Confidence is between 0 and 1. Include only obligations that plausibly relate to the slot. If none relate, return {"matches": []}.`

// LLMFallbackMatcher asks a completion provider to relate a slot to a bounded
// candidate list of obligations. It is intended to run only when the cheaper
// strategies leave the slot below the acceptance threshold; the engine
// enforces that ordering.
type LLMFallbackMatcher struct {
	provider llm.CompletionProvider
	logger   *zap.Logger
}

// NewLLMFallbackMatcher creates an LLM fallback matcher.
func NewLLMFallbackMatcher(provider llm.CompletionProvider, logger *zap.Logger) *LLMFallbackMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMFallbackMatcher{provider: provider, logger: logger}
}

// Name identifies the strategy.
func (m *LLMFallbackMatcher) Name() string { return string(MethodLLM) }

// llmMatchResponse is the structured response shape demanded from the model.
type llmMatchResponse struct {
	Matches []struct {
		ObligationID string  `json:"obligation_id"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	} `json:"matches"`
}

// Match sends the slot and up to MaxLLMCandidates obligations to the model
// and parses the structured response. Matches below confidence 0.5 are
// dropped; the rest are capped at llmConfidenceCap. Malformed or failed
// responses yield zero matches with a warning, never an error.
func (m *LLMFallbackMatcher) Match(ctx context.Context, slot obligation.Slot, obligations []obligation.Obligation) ([]Match, error) {
	if len(obligations) == 0 {
		return nil, nil
	}
	candidates := obligations
	if len(candidates) > MaxLLMCandidates {
		candidates = candidates[:MaxLLMCandidates]
	}

	raw, err := m.provider.CompleteJSON(ctx, llmSystemPrompt, buildLLMPrompt(slot, candidates))
	if err != nil {
		m.logger.Warn("LLM fallback completion failed, skipping strategy for slot",
			zap.String("slot_id", slot.SlotID),
			zap.Error(err),
		)
		return nil, nil
	}

	var parsed llmMatchResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		m.logger.Warn("LLM fallback returned malformed response, skipping strategy for slot",
			zap.String("slot_id", slot.SlotID),
			zap.Error(err),
		)
		return nil, nil
	}

	// Only candidate IDs are accepted; the model sometimes invents IDs.
	known := make(map[string]struct{}, len(candidates))
	for _, obl := range candidates {
		known[obl.ID] = struct{}{}
	}

	var matches []Match
	for _, c := range parsed.Matches {
		if c.Confidence < 0.5 {
			continue
		}
		if _, ok := known[c.ObligationID]; !ok {
			m.logger.Warn("LLM fallback returned unknown obligation ID, dropping",
				zap.String("slot_id", slot.SlotID),
				zap.String("obligation_id", c.ObligationID),
			)
			continue
		}
		confidence := c.Confidence
		if confidence > llmConfidenceCap {
			confidence = llmConfidenceCap
		}
		matches = append(matches, Match{
			SlotID:       slot.SlotID,
			ObligationID: c.ObligationID,
			Confidence:   confidence,
			Method:       MethodLLM,
			Reasoning:    c.Reasoning,
		})
	}
	return matches, nil
}

func buildLLMPrompt(slot obligation.Slot, candidates []obligation.Obligation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slot %q (%s): %s\n", slot.Name, slot.SlotID, slot.Description)
	if len(slot.EvidenceRequirements) > 0 {
		fmt.Fprintf(&b, "Slot evidence requirements: %s\n", strings.Join(slot.EvidenceRequirements, ", "))
	}
	b.WriteString("\nCandidate obligations:\n")
	for _, obl := range candidates {
		fmt.Fprintf(&b, "- id=%s [%s] %s: %s\n", obl.ID, obl.Jurisdiction, obl.Title, obl.Text)
	}
	return b.String()
}
