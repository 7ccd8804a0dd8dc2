package alignment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/embeddings"
	"github.com/complykit/groundd/internal/obligation"
)

// Aligner aligns custom templates to reference standards.
//
// The embedding provider is optional; without it the semantic fallback stage
// is skipped. Provider failures are recovered per pair, never fatal.
type Aligner struct {
	provider embeddings.Provider
	logger   *zap.Logger
}

// AlignerOption configures an Aligner.
type AlignerOption func(*Aligner)

// WithSemanticFallback enables the embedding-based fallback stage.
func WithSemanticFallback(provider embeddings.Provider) AlignerOption {
	return func(a *Aligner) { a.provider = provider }
}

// NewAligner creates an aligner.
func NewAligner(logger *zap.Logger, opts ...AlignerOption) *Aligner {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aligner{logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Request is the input to one alignment run.
type Request struct {
	// TemplateID identifies the custom template.
	TemplateID string

	// Slots is the custom template's normalized slot list.
	Slots []obligation.Slot

	// Reference is the canonical alignment target.
	Reference ReferenceStandard

	// Threshold is the acceptance threshold on the 0-100 scale
	// (default DefaultThreshold).
	Threshold int
}

// Align aligns every custom slot to the reference standard and derives
// obligation coverage transitively.
func (a *Aligner) Align(ctx context.Context, req Request) (*Result, error) {
	if len(req.Reference.Slots) == 0 {
		return nil, ErrEmptyReference
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, threshold)
	}
	// Internal scores live on the same 0..1 scale the grounding engine uses.
	internalThreshold := float64(threshold) / 100

	coveredRef := make(map[string]struct{})
	allObligations := make(map[string]struct{})
	slotResults := make([]CustomSlotResult, 0, len(req.Slots))

	for _, slot := range req.Slots {
		res := a.alignSlot(ctx, slot, req.Reference, internalThreshold)
		for _, al := range res.Alignments {
			coveredRef[al.ReferenceSlotID] = struct{}{}
		}
		for _, id := range res.CoveredObligationIDs {
			allObligations[id] = struct{}{}
		}
		slotResults = append(slotResults, res)
	}

	required := 0
	coveredRequired := 0
	for _, ref := range req.Reference.Slots {
		if !ref.Slot.Required {
			continue
		}
		required++
		if _, ok := coveredRef[ref.Slot.SlotID]; ok {
			coveredRequired++
		}
	}

	result := &Result{
		TemplateID:             req.TemplateID,
		ReferenceStandardID:    req.Reference.ID,
		SlotResults:            slotResults,
		CoveredObligationIDs:   sortedKeys(allObligations),
		CoveredReferenceSlots:  coveredRequired,
		RequiredReferenceSlots: required,
		Classification:         classify(coveredRequired, required),
	}

	a.logger.Info("alignment run complete",
		zap.String("template_id", req.TemplateID),
		zap.String("reference_standard", req.Reference.ID),
		zap.String("classification", string(result.Classification)),
		zap.Int("covered_required_slots", coveredRequired),
		zap.Int("required_slots", required),
	)
	return result, nil
}

// alignSlot scores one custom slot against every reference slot. The direct,
// name and evidence stages always run; the semantic fallback runs only when
// they leave the slot without an accepted alignment.
func (a *Aligner) alignSlot(ctx context.Context, slot obligation.Slot, ref ReferenceStandard, threshold float64) CustomSlotResult {
	best := make(map[string]SlotAlignment)

	record := func(refSlotID string, confidence float64, stage Stage, reasoning string) {
		if confidence < threshold {
			return
		}
		score := scoreTo100(confidence)
		if cur, ok := best[refSlotID]; ok && cur.Score >= score {
			return
		}
		best[refSlotID] = SlotAlignment{
			ReferenceSlotID: refSlotID,
			Score:           score,
			Stage:           stage,
			Reasoning:       reasoning,
		}
	}

	for _, rs := range ref.Slots {
		// Stage 1: explicit reference to the canonical slot ID wins outright,
		// even when every other signal is weak.
		if slot.RegulatoryReference != "" && strings.EqualFold(slot.RegulatoryReference, rs.Slot.SlotID) {
			record(rs.Slot.SlotID, 1.0, StageDirectReference,
				fmt.Sprintf("slot explicitly references canonical slot %s", rs.Slot.SlotID))
			continue
		}

		// Stage 2: name equality or containment.
		if conf, reason := nameAlignment(slot, rs.Slot); conf > 0 {
			record(rs.Slot.SlotID, conf, StageName, reason)
			continue
		}

		// Stage 3: evidence-requirement overlap.
		if conf, reason := evidenceAlignment(slot, rs.Slot); conf > 0 {
			record(rs.Slot.SlotID, conf, StageEvidence, reason)
		}
	}

	if len(best) == 0 && a.provider != nil {
		a.semanticFallback(ctx, slot, ref, record)
	}

	alignments := make([]SlotAlignment, 0, len(best))
	for _, al := range best {
		alignments = append(alignments, al)
	}
	sort.Slice(alignments, func(i, j int) bool {
		if alignments[i].Score != alignments[j].Score {
			return alignments[i].Score > alignments[j].Score
		}
		return alignments[i].ReferenceSlotID < alignments[j].ReferenceSlotID
	})

	obligations := make(map[string]struct{})
	refByID := make(map[string]ReferenceSlot, len(ref.Slots))
	for _, rs := range ref.Slots {
		refByID[rs.Slot.SlotID] = rs
	}
	for _, al := range alignments {
		for _, id := range refByID[al.ReferenceSlotID].ObligationIDs {
			obligations[id] = struct{}{}
		}
	}

	return CustomSlotResult{
		SlotID:               slot.SlotID,
		Alignments:           alignments,
		CoveredObligationIDs: sortedKeys(obligations),
	}
}

// nameAlignment scores name equality or containment at 0.9.
func nameAlignment(slot, ref obligation.Slot) (float64, string) {
	a := strings.ToLower(strings.TrimSpace(slot.Name))
	b := strings.ToLower(strings.TrimSpace(ref.Name))
	if a == "" || b == "" {
		return 0, ""
	}
	switch {
	case a == b:
		return 0.9, fmt.Sprintf("name %q equals canonical slot name", slot.Name)
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.9, fmt.Sprintf("name %q contains or is contained by canonical name %q", slot.Name, ref.Name)
	default:
		return 0, ""
	}
}

// evidenceAlignment scores evidence overlap as 0.5 + ratio*0.4.
func evidenceAlignment(slot, ref obligation.Slot) (float64, string) {
	if len(slot.EvidenceRequirements) == 0 || len(ref.EvidenceRequirements) == 0 {
		return 0, ""
	}
	refSet := obligation.EvidenceSet(ref.EvidenceRequirements)
	shared := 0
	for _, t := range slot.EvidenceRequirements {
		if _, ok := refSet[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0, ""
	}
	denom := len(slot.EvidenceRequirements)
	if len(ref.EvidenceRequirements) > denom {
		denom = len(ref.EvidenceRequirements)
	}
	ratio := float64(shared) / float64(denom)
	return 0.5 + ratio*0.4, fmt.Sprintf("%d shared evidence types (overlap %.0f%%)", shared, ratio*100)
}

// semanticFallback embeds the slot and reference slots and records
// similarity-based alignments capped at 0.9.
func (a *Aligner) semanticFallback(ctx context.Context, slot obligation.Slot, ref ReferenceStandard, record func(string, float64, Stage, string)) {
	slotVec, err := a.provider.Embed(ctx, slotAlignmentText(slot))
	if err != nil {
		a.logger.Warn("slot embedding failed, skipping semantic alignment",
			zap.String("slot_id", slot.SlotID),
			zap.Error(err),
		)
		return
	}

	for _, rs := range ref.Slots {
		refVec, err := a.provider.Embed(ctx, slotAlignmentText(rs.Slot))
		if err != nil {
			a.logger.Warn("reference slot embedding failed, skipping pair",
				zap.String("slot_id", slot.SlotID),
				zap.String("reference_slot_id", rs.Slot.SlotID),
				zap.Error(err),
			)
			continue
		}

		similarity := embeddings.CosineSimilarity(slotVec, refVec)
		if similarity <= 0 {
			continue
		}
		// Model judgment never outranks an exact name or ID match.
		confidence := similarity
		if confidence > 0.9 {
			confidence = 0.9
		}
		record(rs.Slot.SlotID, confidence, StageSemantic,
			fmt.Sprintf("embedding similarity %.2f to canonical slot %q", similarity, rs.Slot.Name))
	}
}

func slotAlignmentText(slot obligation.Slot) string {
	parts := []string{slot.Name}
	if slot.Description != "" {
		parts = append(parts, slot.Description)
	}
	if len(slot.EvidenceRequirements) > 0 {
		parts = append(parts, "Evidence: "+strings.Join(slot.EvidenceRequirements, ", "))
	}
	return strings.Join(parts, "\n")
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
