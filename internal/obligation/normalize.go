package obligation

import (
	"fmt"
	"strings"
)

// RawSlot is the loosely-typed slot record as it arrives from template
// parsers. Different template sources use different field names for the same
// concept (slot_name vs title vs name) and encode the required flag as either
// a bool or a conditional marker string. RawSlot carries all variants;
// NormalizeSlot folds them into a canonical Slot.
type RawSlot struct {
	SlotID   string `json:"slot_id" yaml:"slot_id"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	SlotName string `json:"slot_name,omitempty" yaml:"slot_name,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	DataType    string `json:"data_type,omitempty" yaml:"data_type,omitempty"`

	// Required accepts bool, string markers ("true", "required",
	// "conditional", "optional"...) or nil.
	Required any `json:"required,omitempty" yaml:"required,omitempty"`

	EvidenceRequirements []string `json:"evidence_requirements,omitempty" yaml:"evidence_requirements,omitempty"`
	RegulatoryReference  string   `json:"regulatory_reference,omitempty" yaml:"regulatory_reference,omitempty"`
}

// NormalizeSlot converts a raw slot record into the canonical Slot shape.
//
// Field precedence: slot_id over id; name over slot_name over title.
// A slot without an ID or without any name variant is malformed; callers are
// expected to skip malformed slots and record a warning (one policy for every
// call site).
func NormalizeSlot(raw RawSlot) (Slot, error) {
	id := raw.SlotID
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		return Slot{}, fmt.Errorf("%w: missing slot ID", ErrMalformedSlot)
	}

	name := firstNonEmpty(raw.Name, raw.SlotName, raw.Title)
	if name == "" {
		return Slot{}, fmt.Errorf("%w: slot %q has no name, slot_name or title", ErrMalformedSlot, id)
	}

	required, err := parseRequired(raw.Required)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: slot %q: %v", ErrMalformedSlot, id, err)
	}

	return Slot{
		SlotID:               id,
		Name:                 name,
		Description:          strings.TrimSpace(raw.Description),
		DataType:             raw.DataType,
		Required:             required,
		EvidenceRequirements: normalizeEvidence(raw.EvidenceRequirements),
		RegulatoryReference:  strings.TrimSpace(raw.RegulatoryReference),
	}, nil
}

// NormalizeSlots normalizes a list of raw slots, returning the canonical
// slots plus one warning per malformed slot that was skipped.
func NormalizeSlots(raws []RawSlot) ([]Slot, []string) {
	slots := make([]Slot, 0, len(raws))
	var warnings []string
	for i, raw := range raws {
		slot, err := NormalizeSlot(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped slot at index %d: %v", i, err))
			continue
		}
		slots = append(slots, slot)
	}
	return slots, warnings
}

// parseRequired folds the bool-or-marker-string required field into a bool.
// Conditional and optional markers normalize to false.
func parseRequired(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "required", "mandatory", "yes":
			return true, nil
		case "", "false", "optional", "conditional", "no":
			return false, nil
		default:
			return false, fmt.Errorf("unrecognized required marker %q", t)
		}
	default:
		return false, fmt.Errorf("required field has unsupported type %T", v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
