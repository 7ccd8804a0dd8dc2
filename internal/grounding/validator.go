package grounding

import (
	"fmt"

	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
)

// maxBlockingDetail caps the enumerated blocking messages; the remainder is
// summarized as "+N more".
const maxBlockingDetail = 5

// CoverageValidator computes the PASS/WARNING/BLOCKED gate from coverage
// facts. It is deterministic and has no I/O; all inputs are supplied by the
// engine.
type CoverageValidator struct{}

// NewCoverageValidator creates a validator.
func NewCoverageValidator() *CoverageValidator {
	return &CoverageValidator{}
}

// validationInput carries everything the gate decision needs.
type validationInput struct {
	jurisdictions       []string
	obligationsByRegion map[string][]obligation.Obligation
	uncovered           []UncoveredObligation
	slotResults         []matcher.SlotGroundingResult
	inputWarnings       []string
	strictMode          bool
}

// Validate decides the terminal state.
//
// BLOCKED when a requested jurisdiction has zero registered mandatory
// obligations (knowledge-base configuration failure, checked regardless of
// slot coverage), or when strict mode is on and any mandatory obligation is
// uncovered. WARNING when not blocked but warnings exist. PASS otherwise.
func (v *CoverageValidator) Validate(in validationInput) (Status, []string, []string) {
	var blocking []string
	warnings := append([]string{}, in.inputWarnings...)

	// Configuration failures first: a jurisdiction with no registered
	// mandatory obligations means the knowledge base cannot vouch for the
	// template at all, independent of slot coverage.
	for _, j := range in.jurisdictions {
		if len(in.obligationsByRegion[j]) == 0 {
			blocking = append(blocking, fmt.Sprintf(
				"jurisdiction %q has no registered mandatory obligations; the regulatory knowledge base must be populated for this jurisdiction before validation can proceed", j))
		}
	}

	// Coverage gaps: blocking in strict mode, warnings otherwise.
	if len(in.uncovered) > 0 {
		if in.strictMode {
			blocking = append(blocking, describeUncovered(in.uncovered)...)
		} else {
			for _, u := range in.uncovered {
				warnings = append(warnings, fmt.Sprintf(
					"mandatory obligation %s (%s, %q) is not covered: %s",
					u.Obligation.ID, u.Obligation.Jurisdiction, u.Obligation.Title, u.Reason))
			}
		}
	}

	for _, res := range in.slotResults {
		if !res.IsGrounded {
			warnings = append(warnings, fmt.Sprintf(
				"slot %s has no match at or above the confidence threshold", res.SlotID))
		}
	}

	switch {
	case len(blocking) > 0:
		return StatusBlocked, blocking, warnings
	case len(warnings) > 0:
		return StatusWarning, nil, warnings
	default:
		return StatusPass, nil, nil
	}
}

// describeUncovered enumerates the first maxBlockingDetail uncovered
// obligations with jurisdiction, ID and title, then summarizes the rest.
func describeUncovered(uncovered []UncoveredObligation) []string {
	var msgs []string
	for i, u := range uncovered {
		if i == maxBlockingDetail {
			msgs = append(msgs, fmt.Sprintf("+%d more uncovered mandatory obligations", len(uncovered)-maxBlockingDetail))
			break
		}
		msgs = append(msgs, fmt.Sprintf(
			"mandatory obligation %s (%s, %q) is not covered by any template slot: %s",
			u.Obligation.ID, u.Obligation.Jurisdiction, u.Obligation.Title, u.Reason))
	}
	return msgs
}
