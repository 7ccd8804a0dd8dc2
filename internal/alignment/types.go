package alignment

import (
	"errors"
	"math"

	"github.com/complykit/groundd/internal/obligation"
)

var (
	// ErrEmptyReference indicates a reference standard with no slots.
	ErrEmptyReference = errors.New("reference standard has no slots")

	// ErrInvalidThreshold indicates a threshold outside (0,100].
	ErrInvalidThreshold = errors.New("alignment threshold must be in (0,100]")
)

// DefaultThreshold is the default acceptance threshold on the public 0-100
// alignment scale.
const DefaultThreshold = 60

// Stage identifies which alignment stage produced a score.
type Stage string

const (
	StageDirectReference Stage = "direct_reference"
	StageName            Stage = "name"
	StageEvidence        Stage = "evidence"
	StageSemantic        Stage = "semantic"
)

// ReferenceSlot is a slot of the canonical reference-standard template with
// its pre-built obligation mapping.
type ReferenceSlot struct {
	Slot obligation.Slot `json:"slot"`

	// ObligationIDs are the obligations the reference standard maps this
	// slot to.
	ObligationIDs []string `json:"obligation_ids"`
}

// ReferenceStandard is a canonical, pre-mapped template used as the
// intermediate alignment target for custom templates.
type ReferenceStandard struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Slots []ReferenceSlot `json:"slots"`
}

// Classification is the three-tier outcome of aligning a custom template
// against a reference standard. It is deliberately distinct from the
// grounding gate's PASS/WARNING/BLOCKED.
type Classification string

const (
	// ClassificationAligned means every required reference slot is covered.
	ClassificationAligned Classification = "ALIGNED"

	// ClassificationPartial means 50-99% of required reference slots are
	// covered.
	ClassificationPartial Classification = "PARTIAL"

	// ClassificationMisaligned means under half of the required reference
	// slots are covered.
	ClassificationMisaligned Classification = "MISALIGNED"
)

// SlotAlignment is one accepted custom-slot to reference-slot alignment.
type SlotAlignment struct {
	// ReferenceSlotID identifies the reference-standard slot.
	ReferenceSlotID string `json:"reference_slot_id"`

	// Score is on the conventional 0-100 alignment scale.
	Score int `json:"score"`

	// Stage is the stage that produced the score.
	Stage Stage `json:"stage"`

	// Reasoning explains the alignment.
	Reasoning string `json:"reasoning"`
}

// CustomSlotResult is the alignment outcome for one custom slot.
type CustomSlotResult struct {
	// SlotID identifies the custom slot.
	SlotID string `json:"slot_id"`

	// Alignments lists accepted alignments, best first.
	Alignments []SlotAlignment `json:"alignments,omitempty"`

	// CoveredObligationIDs is the union of obligation sets of every
	// reference slot this slot aligns to at or above the threshold, sorted.
	CoveredObligationIDs []string `json:"covered_obligation_ids,omitempty"`
}

// Result is the full outcome of aligning a custom template.
type Result struct {
	// TemplateID identifies the custom template.
	TemplateID string `json:"template_id"`

	// ReferenceStandardID identifies the alignment target.
	ReferenceStandardID string `json:"reference_standard_id"`

	// SlotResults holds per-custom-slot outcomes in input order.
	SlotResults []CustomSlotResult `json:"slot_results"`

	// CoveredObligationIDs is the union across all custom slots, sorted.
	CoveredObligationIDs []string `json:"covered_obligation_ids"`

	// CoveredReferenceSlots counts required reference slots covered by at
	// least one accepted alignment.
	CoveredReferenceSlots int `json:"covered_reference_slots"`

	// RequiredReferenceSlots counts required slots in the reference standard.
	RequiredReferenceSlots int `json:"required_reference_slots"`

	// Classification is the three-tier template-level outcome.
	Classification Classification `json:"classification"`
}

// scoreTo100 converts an internal 0..1 confidence to the public 0-100 scale.
// This is the single point where the two scales meet.
func scoreTo100(confidence float64) int {
	return int(math.Round(confidence * 100))
}

// classify applies the three-tier scheme to required-reference-slot coverage.
// A reference standard without required slots is trivially aligned.
func classify(covered, required int) Classification {
	if required == 0 || covered == required {
		return ClassificationAligned
	}
	ratio := float64(covered) / float64(required)
	if ratio >= 0.5 {
		return ClassificationPartial
	}
	return ClassificationMisaligned
}
