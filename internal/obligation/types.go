package obligation

import (
	"errors"
	"sort"
)

// Common errors for obligation and slot construction.
var (
	ErrEmptyObligationID = errors.New("obligation ID cannot be empty")
	ErrEmptyJurisdiction = errors.New("jurisdiction cannot be empty")
	ErrInvalidKind       = errors.New("kind must be 'obligation' or 'constraint'")
	ErrMalformedSlot     = errors.New("malformed slot")
)

// Kind distinguishes hard normative requirements from advisory constraints.
type Kind string

const (
	// KindObligation is a normative requirement.
	KindObligation Kind = "obligation"

	// KindConstraint is an advisory constraint that informs but does not
	// mandate document content.
	KindConstraint Kind = "constraint"
)

// Obligation is a normative requirement from the regulatory knowledge store.
//
// The ID is jurisdiction-qualified (e.g. "eu-mdr:art-10-9"). Records are
// treated as immutable snapshots for the duration of a grounding run.
type Obligation struct {
	// ID uniquely identifies the obligation, qualified by jurisdiction.
	ID string `json:"id"`

	// Jurisdiction is the regulatory regime the obligation belongs to.
	Jurisdiction string `json:"jurisdiction"`

	// ArtifactType is the document type the obligation applies to.
	ArtifactType string `json:"artifact_type"`

	// Kind is "obligation" (normative) or "constraint" (advisory).
	Kind Kind `json:"kind"`

	// Title is a brief human-readable summary.
	Title string `json:"title"`

	// Text is the full normative text.
	Text string `json:"text"`

	// SourceCitation is the regulatory citation, if known
	// (e.g. "EU MDR Article 10(9)").
	SourceCitation string `json:"source_citation,omitempty"`

	// Mandatory marks obligations that must be covered for a template to pass
	// coverage validation.
	Mandatory bool `json:"mandatory"`

	// RequiredEvidenceTypes lists the evidence types the obligation demands,
	// held sorted with set semantics.
	RequiredEvidenceTypes []string `json:"required_evidence_types,omitempty"`
}

// Validate checks structural invariants on the obligation.
func (o *Obligation) Validate() error {
	if o.ID == "" {
		return ErrEmptyObligationID
	}
	if o.Jurisdiction == "" {
		return ErrEmptyJurisdiction
	}
	if o.Kind != KindObligation && o.Kind != KindConstraint {
		return ErrInvalidKind
	}
	return nil
}

// Slot is a named structural element of a document template that generated
// content will be placed into. Slots are produced by NormalizeSlot and are
// read-only inputs to a grounding run.
type Slot struct {
	// SlotID uniquely identifies the slot within its template.
	SlotID string `json:"slot_id"`

	// Name is the canonical display name.
	Name string `json:"name"`

	// Description explains what content belongs in the slot.
	Description string `json:"description,omitempty"`

	// DataType describes the expected content shape (text, table, list...).
	DataType string `json:"data_type,omitempty"`

	// Required marks slots that must be filled. Conditional markers from
	// source templates are normalized to false here; conditionality is a
	// rendering concern, not a grounding one.
	Required bool `json:"required"`

	// EvidenceRequirements lists evidence types the slot expects, held sorted
	// with set semantics.
	EvidenceRequirements []string `json:"evidence_requirements,omitempty"`

	// RegulatoryReference is an optional citation the template author
	// attached to the slot (e.g. "Article 10" or a reference slot ID).
	RegulatoryReference string `json:"regulatory_reference,omitempty"`
}

// EvidenceSet converts a normalized evidence list into a lookup set.
func EvidenceSet(types []string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// normalizeEvidence deduplicates and sorts an evidence-type list.
// Empty entries are dropped.
func normalizeEvidence(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
